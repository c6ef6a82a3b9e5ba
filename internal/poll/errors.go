package poll

import "errors"

var (
	ErrEmptyLobby = errors.New("lobby has no players")
	ErrNoGames    = errors.New("no eligible games")
)
