package poll

import (
	"context"
	"fmt"

	"github.com/gamenight/decider/internal/game"
	"github.com/gamenight/decider/internal/lobby"
)

// Source is the game store snapshot the generator reads.
type Source interface {
	Entries(ctx context.Context, userIDs []int64) ([]game.Entry, error)
	Games(ctx context.Context, ids []int64) ([]game.Game, error)
}

type Generator struct {
	source     Source
	maxOptions int
}

func NewGenerator(source Source) *Generator {
	return &Generator{source: source, maxOptions: MaxOptions}
}

// Candidates merges the collections of the lobby's registered players with
// the games its guests brought.
func (g *Generator) Candidates(ctx context.Context, l *lobby.Lobby) ([]Candidate, error) {
	entries, err := g.source.Entries(ctx, l.RegisteredIDs())
	if err != nil {
		return nil, fmt.Errorf("load collections: %w", err)
	}

	ids := make([]int64, 0, len(l.GuestGames))
	for _, gg := range l.GuestGames {
		ids = append(ids, gg.GameID)
	}
	games, err := g.source.Games(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load guest games: %w", err)
	}
	byID := make(map[int64]game.Game, len(games))
	for _, gm := range games {
		byID[gm.ID] = gm
	}
	guestGames := make([]game.Game, 0, len(l.GuestGames))
	for _, gg := range l.GuestGames {
		if gm, ok := byID[gg.GameID]; ok {
			guestGames = append(guestGames, gm)
		}
	}

	return MergeCandidates(entries, guestGames), nil
}

// Plan decides which polls to send for the lobby.
// Returns ErrEmptyLobby when nobody joined and ErrNoGames when nothing fits.
func (g *Generator) Plan(ctx context.Context, l *lobby.Lobby) ([]Plan, error) {
	players := l.PlayerCount()
	if players == 0 {
		return nil, ErrEmptyLobby
	}

	candidates, err := g.Candidates(ctx, l)
	if err != nil {
		return nil, err
	}

	plans := BuildPlans(Eligible(candidates, players), g.maxOptions)
	if len(plans) == 0 {
		return nil, ErrNoGames
	}
	return plans, nil
}
