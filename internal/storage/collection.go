package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gamenight/decider/internal/game"
)

const batchSize = 100

type CollectionRepository struct {
	db *DB
}

func NewCollectionRepository(db *DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) Get(ctx context.Context, userID, gameID int64) (*game.Entry, error) {
	var row collectionRow
	err := r.db.gorm.WithContext(ctx).
		Preload("Game").
		Where("user_id = ? AND game_id = ?", userID, gameID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select collection entry: %w", err)
	}
	e := row.toEntry()
	return &e, nil
}

func (r *CollectionRepository) ListByUsers(ctx context.Context, userIDs []int64) ([]game.Entry, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []collectionRow
	err := r.db.gorm.WithContext(ctx).
		Preload("Game").
		Where("user_id IN ?", userIDs).
		Order("user_id, game_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select collection: %w", err)
	}
	entries := make([]game.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

// Save upserts the entry's state and new flag. The game must already exist.
func (r *CollectionRepository) Save(ctx context.Context, e *game.Entry) error {
	row := newCollectionRow(*e)
	err := r.db.gorm.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "is_new"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert collection entry: %w", err)
	}
	return nil
}

func (r *CollectionRepository) ApplySync(ctx context.Context, sync *game.SyncChanges) error {
	return r.db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userRow{}).
			Where("telegram_id = ?", sync.UserID).
			Updates(map[string]any{
				"bgg_username": sync.BGGUsername,
				"updated_at":   time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("link bgg username: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("link bgg username: %w", game.ErrUserNotFound)
		}

		if len(sync.Games) > 0 {
			rows := make([]gameRow, 0, len(sync.Games))
			for _, g := range sync.Games {
				rows = append(rows, newGameRow(g))
			}
			if err := upsertGames(tx).CreateInBatches(rows, batchSize).Error; err != nil {
				return fmt.Errorf("upsert games: %w", err)
			}
		}

		if len(sync.Add) > 0 {
			rows := make([]collectionRow, 0, len(sync.Add))
			for _, e := range sync.Add {
				rows = append(rows, newCollectionRow(e))
			}
			err := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(rows, batchSize).Error
			if err != nil {
				return fmt.Errorf("insert collection entries: %w", err)
			}
		}

		if err := applyEffectiveMax(tx, sync); err != nil {
			return err
		}

		if len(sync.Remove) > 0 {
			err := tx.Where("user_id = ? AND game_id IN ?", sync.UserID, sync.Remove).
				Delete(&collectionRow{}).Error
			if err != nil {
				return fmt.Errorf("delete collection entries: %w", err)
			}
		}
		return nil
	})
}

// applyEffectiveMax resets the expansion player counts of the synced games
// and writes the ones the sync found.
func applyEffectiveMax(tx *gorm.DB, sync *game.SyncChanges) error {
	if len(sync.Games) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(sync.Games))
	for _, g := range sync.Games {
		ids = append(ids, g.ID)
	}
	err := tx.Model(&collectionRow{}).
		Where("user_id = ? AND game_id IN ?", sync.UserID, ids).
		Update("effective_max_players", gorm.Expr("NULL")).Error
	if err != nil {
		return fmt.Errorf("reset effective max: %w", err)
	}
	for id, n := range sync.EffectiveMax {
		err := tx.Model(&collectionRow{}).
			Where("user_id = ? AND game_id = ?", sync.UserID, id).
			Update("effective_max_players", n).Error
		if err != nil {
			return fmt.Errorf("set effective max: %w", err)
		}
	}
	return nil
}
