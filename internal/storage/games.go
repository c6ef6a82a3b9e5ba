package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gamenight/decider/internal/game"
)

var gameColumns = []string{
	"name", "min_players", "max_players", "playing_time",
	"min_playing_time", "max_playing_time", "weight", "thumbnail",
}

func upsertGames(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(gameColumns),
	})
}

type GameRepository struct {
	db *DB
}

func NewGameRepository(db *DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) Get(ctx context.Context, id int64) (*game.Game, error) {
	var row gameRow
	err := r.db.gorm.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	g := row.toGame()
	return &g, nil
}

func (r *GameRepository) List(ctx context.Context, ids []int64) ([]game.Game, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []gameRow
	if err := r.db.gorm.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	games := make([]game.Game, 0, len(rows))
	for _, row := range rows {
		games = append(games, row.toGame())
	}
	return games, nil
}

// FindByName returns games whose name equals name ignoring case, BGG records first.
func (r *GameRepository) FindByName(ctx context.Context, name string) ([]game.Game, error) {
	var rows []gameRow
	err := r.db.gorm.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select games by name: %w", err)
	}
	games := make([]game.Game, 0, len(rows))
	for _, row := range rows {
		games = append(games, row.toGame())
	}
	return games, nil
}

func (r *GameRepository) Save(ctx context.Context, g *game.Game) error {
	row := newGameRow(*g)
	if err := upsertGames(r.db.gorm.WithContext(ctx)).Create(&row).Error; err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	return nil
}
