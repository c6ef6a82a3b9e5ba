package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gamenight/decider/internal/game"
)

// Store persists one lobby per chat. Get and FindByPoll return nil, nil when
// nothing is stored.
type Store interface {
	Get(ctx context.Context, chatID int64) (*Lobby, error)
	FindByPoll(ctx context.Context, pollID string) (*Lobby, error)
	// Save replaces whatever is stored for the lobby's chat.
	Save(ctx context.Context, l *Lobby) error
	Delete(ctx context.Context, chatID int64) error
}

// Games is the part of the game store the lobby needs for guests.
type Games interface {
	CreateGuest(ctx context.Context, id int64, name string, addedBy int64) (*game.User, error)
	FindOrCreateGame(ctx context.Context, name string, minPlayers, maxPlayers int, weight float64) (*game.Game, error)
}

type Service struct {
	store  Store
	games  Games
	locks  *chatLocks
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, games Games, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		games:  games,
		locks:  newChatLocks(),
		logger: logger,
		now:    time.Now,
	}
}

// Start opens a new lobby in the chat, discarding any previous one.
func (s *Service) Start(ctx context.Context, chatID int64) (*Lobby, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	l := &Lobby{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		CreatedAt: s.now(),
	}
	if err := s.store.Save(ctx, l); err != nil {
		return nil, fmt.Errorf("save lobby: %w", err)
	}
	s.logger.Info("lobby started", "chat_id", chatID, "lobby_id", l.ID)
	return l, nil
}

// Get returns the chat's lobby or ErrNoLobby.
func (s *Service) Get(ctx context.Context, chatID int64) (*Lobby, error) {
	l, err := s.store.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get lobby: %w", err)
	}
	if l == nil {
		return nil, ErrNoLobby
	}
	return l, nil
}

// Current returns the chat's lobby if it is the one identified by lobbyID.
// Buttons of replaced lobbies get ErrStaleLobby.
func (s *Service) Current(ctx context.Context, chatID int64, lobbyID string) (*Lobby, error) {
	l, err := s.store.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get lobby: %w", err)
	}
	if l == nil || l.ID != lobbyID {
		return nil, ErrStaleLobby
	}
	return l, nil
}

// SetMessage remembers the message that shows the lobby.
func (s *Service) SetMessage(ctx context.Context, chatID int64, lobbyID string, messageID int) error {
	_, err := s.update(ctx, chatID, func(l *Lobby) (bool, error) {
		if l.ID != lobbyID {
			return false, ErrStaleLobby
		}
		l.MessageID = messageID
		return true, nil
	})
	return err
}

// Join adds the player. joined is false if they were already in.
func (s *Service) Join(ctx context.Context, chatID int64, p Player) (l *Lobby, joined bool, err error) {
	l, err = s.update(ctx, chatID, func(l *Lobby) (bool, error) {
		if l.HasPlayer(p.UserID) {
			return false, nil
		}
		l.Players = append(l.Players, p)
		joined = true
		return true, nil
	})
	return l, joined, err
}

// Leave removes the player and any games they brought as a guest.
func (s *Service) Leave(ctx context.Context, chatID int64, userID int64) (l *Lobby, left bool, err error) {
	l, err = s.update(ctx, chatID, func(l *Lobby) (bool, error) {
		if !l.HasPlayer(userID) {
			return false, nil
		}
		removePlayer(l, userID)
		left = true
		return true, nil
	})
	return l, left, err
}

// AddGuest creates a guest player scoped to the lobby and joins them.
// Adding the same name twice returns the existing guest.
func (s *Service) AddGuest(ctx context.Context, chatID int64, name string, addedBy int64) (*Lobby, Player, error) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return nil, Player{}, ErrEmptyGuestName
	}

	var guest Player
	l, err := s.update(ctx, chatID, func(l *Lobby) (bool, error) {
		id := game.GuestID(l.ID, name)
		if p, ok := l.Player(id); ok {
			guest = p
			return false, nil
		}
		if _, err := s.games.CreateGuest(ctx, id, name, addedBy); err != nil {
			return false, err
		}
		guest = Player{UserID: id, Name: name, IsGuest: true, AddedBy: addedBy}
		l.Players = append(l.Players, guest)
		return true, nil
	})
	if err != nil {
		return nil, Player{}, err
	}
	return l, guest, nil
}

// AddGuestGame parses "<guest> <game>" where the guest is the longest matching
// guest name, then records the game as that guest's contribution.
// An unknown guest fails before anything is written.
func (s *Service) AddGuestGame(ctx context.Context, chatID int64, text string, minPlayers, maxPlayers int, weight float64) (*Lobby, Player, *game.Game, error) {
	var (
		guest Player
		g     *game.Game
	)
	l, err := s.update(ctx, chatID, func(l *Lobby) (bool, error) {
		var rest string
		var ok bool
		guest, rest, ok = matchGuest(l.Guests(), text)
		if !ok {
			names := make([]string, 0)
			for _, p := range l.Guests() {
				names = append(names, p.Name)
			}
			return false, &UnknownGuestError{Text: strings.TrimSpace(text), Guests: names}
		}
		if rest == "" {
			return false, ErrMissingGame
		}

		var err error
		g, err = s.games.FindOrCreateGame(ctx, rest, minPlayers, maxPlayers, weight)
		if err != nil {
			return false, err
		}
		for _, gg := range l.GuestGames {
			if gg.GuestID == guest.UserID && gg.GameID == g.ID {
				return false, nil
			}
		}
		l.GuestGames = append(l.GuestGames, GuestGame{
			GuestID:  guest.UserID,
			GameID:   g.ID,
			GameName: g.Name,
		})
		return true, nil
	})
	if err != nil {
		return nil, Player{}, nil, err
	}
	return l, guest, g, nil
}

// Cancel discards the chat's lobby and returns it.
func (s *Service) Cancel(ctx context.Context, chatID int64) (*Lobby, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	l, err := s.store.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get lobby: %w", err)
	}
	if l == nil {
		return nil, ErrNoLobby
	}
	if err := s.store.Delete(ctx, chatID); err != nil {
		return nil, fmt.Errorf("delete lobby: %w", err)
	}
	s.logger.Info("lobby cancelled", "chat_id", chatID, "lobby_id", l.ID)
	return l, nil
}

// Finish ends the lobby identified by lobbyID once voting is over. Only the
// first caller succeeds; later ones get ErrStaleLobby.
func (s *Service) Finish(ctx context.Context, chatID int64, lobbyID string) (*Lobby, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	l, err := s.store.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get lobby: %w", err)
	}
	if l == nil || l.ID != lobbyID {
		return nil, ErrStaleLobby
	}
	if err := s.store.Delete(ctx, chatID); err != nil {
		return nil, fmt.Errorf("delete lobby: %w", err)
	}
	return l, nil
}

// BeginPolls claims the lobby's polls for one sender. Every other caller gets
// ErrPollsOpen until the polls are aborted or the lobby ends.
func (s *Service) BeginPolls(ctx context.Context, chatID int64, lobbyID string) (*Lobby, error) {
	return s.update(ctx, chatID, func(l *Lobby) (bool, error) {
		if l.ID != lobbyID {
			return false, ErrStaleLobby
		}
		if l.PollsOpen() {
			return false, ErrPollsOpen
		}
		l.SendingPolls = true
		return true, nil
	})
}

// PollsSent marks the end of sending. Voting can complete from here on.
func (s *Service) PollsSent(ctx context.Context, chatID int64, lobbyID string) (*Lobby, error) {
	return s.update(ctx, chatID, func(l *Lobby) (bool, error) {
		if l.ID != lobbyID {
			return false, ErrStaleLobby
		}
		if !l.SendingPolls {
			return false, nil
		}
		l.SendingPolls = false
		return true, nil
	})
}

// AbortPolls releases the claim taken by BeginPolls and forgets the polls sent
// so far. They are returned so the caller can remove them from the chat.
func (s *Service) AbortPolls(ctx context.Context, chatID int64, lobbyID string) ([]PollRef, error) {
	var sent []PollRef
	_, err := s.update(ctx, chatID, func(l *Lobby) (bool, error) {
		if l.ID != lobbyID {
			return false, ErrStaleLobby
		}
		sent = l.Polls
		l.Polls = nil
		l.SendingPolls = false
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return sent, nil
}

// AddPoll remembers a poll sent for the lobby.
func (s *Service) AddPoll(ctx context.Context, chatID int64, lobbyID string, ref PollRef) error {
	_, err := s.update(ctx, chatID, func(l *Lobby) (bool, error) {
		if l.ID != lobbyID {
			return false, ErrStaleLobby
		}
		l.Polls = append(l.Polls, ref)
		return true, nil
	})
	return err
}

// FindByPoll returns the lobby a poll was sent for.
func (s *Service) FindByPoll(ctx context.Context, pollID string) (*Lobby, error) {
	l, err := s.store.FindByPoll(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("find lobby by poll: %w", err)
	}
	if l == nil {
		return nil, ErrNoLobby
	}
	return l, nil
}

// RecordVote marks userID as having answered the poll.
func (s *Service) RecordVote(ctx context.Context, pollID string, userID int64) (*Lobby, error) {
	return s.updateVote(ctx, pollID, func(ref *PollRef) bool {
		if ref.HasVoted(userID) {
			return false
		}
		ref.Voters = append(ref.Voters, userID)
		return true
	})
}

// RetractVote forgets userID's answer to the poll.
func (s *Service) RetractVote(ctx context.Context, pollID string, userID int64) (*Lobby, error) {
	return s.updateVote(ctx, pollID, func(ref *PollRef) bool {
		for i, v := range ref.Voters {
			if v == userID {
				ref.Voters = append(ref.Voters[:i], ref.Voters[i+1:]...)
				return true
			}
		}
		return false
	})
}

func (s *Service) updateVote(ctx context.Context, pollID string, fn func(ref *PollRef) bool) (*Lobby, error) {
	found, err := s.FindByPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, found.ChatID, func(l *Lobby) (bool, error) {
		ref, ok := l.Poll(pollID)
		if !ok {
			return false, ErrStaleLobby
		}
		return fn(ref), nil
	})
}

// update runs fn on the chat's lobby under the chat lock and saves when fn reports a change.
func (s *Service) update(ctx context.Context, chatID int64, fn func(l *Lobby) (bool, error)) (*Lobby, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	l, err := s.store.Get(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get lobby: %w", err)
	}
	if l == nil {
		return nil, ErrNoLobby
	}

	changed, err := fn(l)
	if err != nil {
		return nil, err
	}
	if !changed {
		return l, nil
	}
	if err := s.store.Save(ctx, l); err != nil {
		return nil, fmt.Errorf("save lobby: %w", err)
	}
	return l, nil
}

func removePlayer(l *Lobby, userID int64) {
	players := l.Players[:0]
	for _, p := range l.Players {
		if p.UserID != userID {
			players = append(players, p)
		}
	}
	l.Players = players

	games := l.GuestGames[:0]
	for _, gg := range l.GuestGames {
		if gg.GuestID != userID {
			games = append(games, gg)
		}
	}
	l.GuestGames = games
}

// matchGuest finds the longest guest name that prefixes text on a word boundary.
func matchGuest(guests []Player, text string) (Player, string, bool) {
	text = strings.TrimSpace(text)

	var (
		best    Player
		bestLen int
		found   bool
	)
	for _, g := range guests {
		n := len(g.Name)
		if n == 0 || n > len(text) || n <= bestLen {
			continue
		}
		if !strings.EqualFold(text[:n], g.Name) {
			continue
		}
		if n < len(text) {
			next, _ := utf8.DecodeRuneInString(text[n:])
			if !unicode.IsSpace(next) {
				continue
			}
		}
		best, bestLen, found = g, n, true
	}
	if !found {
		return Player{}, "", false
	}
	return best, strings.TrimSpace(text[bestLen:]), true
}
