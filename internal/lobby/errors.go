package lobby

import (
	"errors"
	"fmt"
)

var (
	ErrNoLobby        = errors.New("no active lobby")
	ErrStaleLobby     = errors.New("lobby is no longer active")
	ErrUnknownGuest   = errors.New("unknown guest")
	ErrEmptyGuestName = errors.New("guest name is empty")
	ErrMissingGame    = errors.New("game name is missing")
	ErrPollsOpen      = errors.New("polls are already open")
)

// UnknownGuestError lists the guests that are in the lobby so the user can retry.
type UnknownGuestError struct {
	Text   string
	Guests []string
}

func (e *UnknownGuestError) Error() string {
	return fmt.Sprintf("no guest in lobby matches %q", e.Text)
}

func (e *UnknownGuestError) Is(target error) bool {
	return target == ErrUnknownGuest
}
