package poll

import (
	"strings"
	"unicode/utf8"

	"github.com/gamenight/decider/internal/game"
)

const (
	MarkerStarred = "⭐ "
	MarkerNew     = "🆕 "

	// Telegram rejects poll options longer than 100 characters.
	maxOptionLength = 100
)

// Candidate is a game that could be played tonight, merged across its owners.
type Candidate struct {
	Game     game.Game
	Owners   int
	Excluded bool // every owner in the lobby excluded it
	Stars    int  // owners that starred it
	New      bool // at least one owner has not played it yet

	// MaxPlayers is the most players any owner who kept the game can seat,
	// counting the expansions they own.
	MaxPlayers int
}

// Supports reports whether the game, with its owners' expansions, seats
// the given number of players.
func (c Candidate) Supports(players int) bool {
	return players >= c.Game.MinPlayers && players <= max(c.MaxPlayers, c.Game.MaxPlayers)
}

// Label is the poll option text.
func (c Candidate) Label() string {
	var b strings.Builder
	if c.Stars > 0 {
		b.WriteString(MarkerStarred)
	}
	if c.New {
		b.WriteString(MarkerNew)
	}
	name := []rune(c.Game.Name)
	if limit := maxOptionLength - utf8.RuneCountInString(b.String()); len(name) > limit {
		name = append(name[:limit-1], '…')
	}
	b.WriteString(string(name))
	return b.String()
}

// StripMarkers returns the game name behind a poll option label.
func StripMarkers(label string) string {
	for {
		switch {
		case strings.HasPrefix(label, MarkerStarred):
			label = strings.TrimPrefix(label, MarkerStarred)
		case strings.HasPrefix(label, MarkerNew):
			label = strings.TrimPrefix(label, MarkerNew)
		default:
			return label
		}
	}
}

// MergeCandidates folds the collections of the joined players and the games
// guests brought into one candidate per game.
func MergeCandidates(entries []game.Entry, guestGames []game.Game) []Candidate {
	type acc struct {
		c        Candidate
		excluded int
	}
	byID := make(map[int64]*acc)
	var order []int64

	get := func(g game.Game) *acc {
		a, ok := byID[g.ID]
		if !ok {
			a = &acc{c: Candidate{Game: g, MaxPlayers: g.MaxPlayers}}
			byID[g.ID] = a
			order = append(order, g.ID)
		}
		return a
	}

	for _, e := range entries {
		a := get(e.Game)
		a.c.Owners++
		switch e.State {
		case game.StateExcluded:
			a.excluded++
		case game.StateStarred:
			a.c.Stars++
		}
		if e.State != game.StateExcluded {
			a.c.MaxPlayers = max(a.c.MaxPlayers, e.MaxPlayers())
		}
		if e.IsNew {
			a.c.New = true
		}
	}
	for _, g := range guestGames {
		get(g).c.Owners++
	}

	out := make([]Candidate, 0, len(order))
	for _, id := range order {
		a := byID[id]
		a.c.Excluded = a.excluded > 0 && a.excluded == a.c.Owners
		out = append(out, a.c)
	}
	return out
}

// Eligible keeps candidates that are not excluded and fit the player count.
func Eligible(candidates []Candidate, players int) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if !c.Excluded && c.Supports(players) {
			out = append(out, c)
		}
	}
	return out
}
