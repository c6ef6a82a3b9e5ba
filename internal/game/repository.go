package game

import (
	"context"

	"github.com/gamenight/decider/internal/catalog"
)

// Repositories return nil, nil when the requested row does not exist.

type UserRepository interface {
	Get(ctx context.Context, telegramID int64) (*User, error)
	GetByBGGUsername(ctx context.Context, username string) (*User, error)
	Save(ctx context.Context, u *User) error
}

type GameRepository interface {
	Get(ctx context.Context, id int64) (*Game, error)
	List(ctx context.Context, ids []int64) ([]Game, error)
	// FindByName matches names case-insensitively.
	FindByName(ctx context.Context, name string) ([]Game, error)
	Save(ctx context.Context, g *Game) error
}

type CollectionRepository interface {
	Get(ctx context.Context, userID, gameID int64) (*Entry, error)
	ListByUsers(ctx context.Context, userIDs []int64) ([]Entry, error)
	Save(ctx context.Context, e *Entry) error
	// ApplySync writes a collection sync in a single transaction.
	ApplySync(ctx context.Context, sync *SyncChanges) error
}

// SyncChanges is everything a collection sync writes.
type SyncChanges struct {
	UserID      int64
	BGGUsername string
	Games       []Game  // upserted by id
	Add         []Entry // new collection entries
	Remove      []int64 // game ids no longer owned
	// EffectiveMax raises the player count of owned games through owned
	// expansions. Synced games missing here are reset.
	EffectiveMax map[int64]int
}

// Catalog is the external source of owned games.
type Catalog interface {
	Collection(ctx context.Context, username string) ([]catalog.Item, error)
	Expansions(ctx context.Context, username string) ([]catalog.Item, error)
	Things(ctx context.Context, ids ...int64) ([]catalog.Item, error)
	Search(ctx context.Context, query string, limit int) ([]catalog.SearchResult, error)
}
