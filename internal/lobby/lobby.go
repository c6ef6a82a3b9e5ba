package lobby

import (
	"slices"
	"time"
)

type Player struct {
	UserID  int64
	Name    string
	IsGuest bool
	AddedBy int64 // for guests, who added them
}

// GuestGame is a game a guest brings to this lobby only.
type GuestGame struct {
	GuestID  int64
	GameID   int64
	GameName string
}

// PollRef is the handle of a native poll sent for the lobby.
type PollRef struct {
	PollID    string
	MessageID int
	Options   []PollOption // in option order
	Voters    []int64
}

// PollOption is the game behind one poll option and the stars it carried
// when the poll was sent.
type PollOption struct {
	GameID int64
	Stars  int
}

func (p PollRef) HasVoted(userID int64) bool {
	return slices.Contains(p.Voters, userID)
}

type Lobby struct {
	ID         string
	ChatID     int64
	MessageID  int
	Players    []Player
	GuestGames []GuestGame
	Polls      []PollRef
	// SendingPolls is set while one sender posts the polls.
	SendingPolls bool
	CreatedAt    time.Time
}

// PlayerCount counts registered players and guests alike.
func (l *Lobby) PlayerCount() int {
	return len(l.Players)
}

func (l *Lobby) Player(userID int64) (Player, bool) {
	for _, p := range l.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return Player{}, false
}

func (l *Lobby) HasPlayer(userID int64) bool {
	_, ok := l.Player(userID)
	return ok
}

// RegisteredIDs returns the ids of joined players that are not guests.
func (l *Lobby) RegisteredIDs() []int64 {
	var ids []int64
	for _, p := range l.Players {
		if !p.IsGuest {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

func (l *Lobby) Guests() []Player {
	var guests []Player
	for _, p := range l.Players {
		if p.IsGuest {
			guests = append(guests, p)
		}
	}
	return guests
}

func (l *Lobby) Poll(pollID string) (*PollRef, bool) {
	for i := range l.Polls {
		if l.Polls[i].PollID == pollID {
			return &l.Polls[i], true
		}
	}
	return nil, false
}

// PollsOpen reports whether polls are being sent or waiting for votes.
func (l *Lobby) PollsOpen() bool {
	return l.SendingPolls || len(l.Polls) > 0
}

// VotingComplete reports whether every registered player answered every poll.
// Guests cannot vote, so a lobby of guests only never completes. Nothing
// completes while polls are still being sent.
func (l *Lobby) VotingComplete() bool {
	registered := l.RegisteredIDs()
	if l.SendingPolls || len(l.Polls) == 0 || len(registered) == 0 {
		return false
	}
	for _, p := range l.Polls {
		for _, id := range registered {
			if !p.HasVoted(id) {
				return false
			}
		}
	}
	return true
}
