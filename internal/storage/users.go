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

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, telegramID int64) (*game.User, error) {
	var row userRow
	err := r.db.gorm.WithContext(ctx).First(&row, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return row.toUser(), nil
}

func (r *UserRepository) GetByBGGUsername(ctx context.Context, username string) (*game.User, error) {
	var row userRow
	err := r.db.gorm.WithContext(ctx).
		Where("LOWER(bgg_username) = LOWER(?)", username).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user by bgg username: %w", err)
	}
	return row.toUser(), nil
}

// Save inserts the user or updates every mutable column of an existing one.
func (r *UserRepository) Save(ctx context.Context, u *game.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	row := newUserRow(u)
	err := r.db.gorm.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"telegram_name", "bgg_username", "is_guest", "added_by", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
