package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gamenight/decider/internal/catalog"
)

var (
	ErrNotFound      = errors.New("game not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidRange  = errors.New("invalid player range")
	ErrInvalidWeight = errors.New("invalid weight")
	ErrUsernameTaken = errors.New("bgg username already linked to another user")
	ErrEmptyName     = errors.New("game name is empty")
	ErrNoBGGUsername = errors.New("no bgg username linked")
)

// AmbiguousError is returned when a name matches several games in a collection.
type AmbiguousError struct {
	Query   string
	Matches []Game
}

func (e *AmbiguousError) Error() string {
	names := make([]string, 0, len(e.Matches))
	for _, g := range e.Matches {
		names = append(names, g.Name)
	}
	return fmt.Sprintf("%q matches several games: %s", e.Query, strings.Join(names, ", "))
}

// NoExactMatchError is returned by AddGame when BGG knows similar titles but none matches exactly.
type NoExactMatchError struct {
	Query       string
	Suggestions []catalog.SearchResult
}

func (e *NoExactMatchError) Error() string {
	return fmt.Sprintf("no exact bgg match for %q (%d suggestions)", e.Query, len(e.Suggestions))
}
