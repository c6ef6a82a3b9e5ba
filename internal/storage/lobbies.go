package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gamenight/decider/internal/lobby"
)

// LobbyStore keeps lobbies in the relational database.
type LobbyStore struct {
	db *DB
}

func NewLobbyStore(db *DB) *LobbyStore {
	return &LobbyStore{db: db}
}

func (s *LobbyStore) Get(ctx context.Context, chatID int64) (*lobby.Lobby, error) {
	return s.load(s.db.gorm.WithContext(ctx), chatID)
}

func (s *LobbyStore) FindByPoll(ctx context.Context, pollID string) (*lobby.Lobby, error) {
	db := s.db.gorm.WithContext(ctx)

	var row lobbyPollRow
	err := db.First(&row, "poll_id = ?", pollID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select lobby poll: %w", err)
	}
	return s.load(db, row.ChatID)
}

// Save replaces the chat's lobby, including players, guest games and polls.
func (s *LobbyStore) Save(ctx context.Context, l *lobby.Lobby) error {
	rows := lobbyRows(l)

	return s.db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteLobby(tx, l.ChatID); err != nil {
			return err
		}
		if err := tx.Create(&rows.lobby).Error; err != nil {
			return fmt.Errorf("insert lobby: %w", err)
		}
		if len(rows.players) > 0 {
			if err := tx.Create(&rows.players).Error; err != nil {
				return fmt.Errorf("insert lobby players: %w", err)
			}
		}
		if len(rows.guestGames) > 0 {
			if err := tx.Create(&rows.guestGames).Error; err != nil {
				return fmt.Errorf("insert lobby guest games: %w", err)
			}
		}
		if len(rows.polls) > 0 {
			if err := tx.Create(&rows.polls).Error; err != nil {
				return fmt.Errorf("insert lobby polls: %w", err)
			}
		}
		if len(rows.options) > 0 {
			if err := tx.Create(&rows.options).Error; err != nil {
				return fmt.Errorf("insert lobby poll options: %w", err)
			}
		}
		if len(rows.votes) > 0 {
			if err := tx.Create(&rows.votes).Error; err != nil {
				return fmt.Errorf("insert lobby votes: %w", err)
			}
		}
		return nil
	})
}

func (s *LobbyStore) Delete(ctx context.Context, chatID int64) error {
	return s.db.gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteLobby(tx, chatID)
	})
}

func deleteLobby(tx *gorm.DB, chatID int64) error {
	// Children first, foreign keys are enforced.
	for _, model := range []any{&lobbyVoteRow{}, &lobbyPollOptionRow{}, &lobbyPollRow{}, &lobbyGuestGameRow{}, &lobbyPlayerRow{}, &lobbyRow{}} {
		if err := tx.Where("chat_id = ?", chatID).Delete(model).Error; err != nil {
			return fmt.Errorf("delete lobby: %w", err)
		}
	}
	return nil
}

func (s *LobbyStore) load(db *gorm.DB, chatID int64) (*lobby.Lobby, error) {
	var lr lobbyRow
	err := db.First(&lr, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select lobby: %w", err)
	}

	var players []lobbyPlayerRow
	if err := db.Where("chat_id = ?", chatID).Order("position").Find(&players).Error; err != nil {
		return nil, fmt.Errorf("select lobby players: %w", err)
	}
	var guestGames []lobbyGuestGameRow
	if err := db.Where("chat_id = ?", chatID).Order("position").Find(&guestGames).Error; err != nil {
		return nil, fmt.Errorf("select lobby guest games: %w", err)
	}
	var polls []lobbyPollRow
	if err := db.Where("chat_id = ?", chatID).Order("position").Find(&polls).Error; err != nil {
		return nil, fmt.Errorf("select lobby polls: %w", err)
	}
	var options []lobbyPollOptionRow
	if err := db.Where("chat_id = ?", chatID).Order("position").Find(&options).Error; err != nil {
		return nil, fmt.Errorf("select lobby poll options: %w", err)
	}
	var votes []lobbyVoteRow
	if err := db.Where("chat_id = ?", chatID).Order("position").Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("select lobby votes: %w", err)
	}

	l := &lobby.Lobby{
		ID:           lr.LobbyID,
		ChatID:       lr.ChatID,
		MessageID:    lr.MessageID,
		SendingPolls: lr.SendingPolls,
		CreatedAt:    lr.CreatedAt,
	}
	for _, p := range players {
		l.Players = append(l.Players, lobby.Player{
			UserID:  p.UserID,
			Name:    p.Name,
			IsGuest: p.IsGuest,
			AddedBy: p.AddedBy,
		})
	}
	for _, gg := range guestGames {
		l.GuestGames = append(l.GuestGames, lobby.GuestGame{
			GuestID:  gg.GuestID,
			GameID:   gg.GameID,
			GameName: gg.GameName,
		})
	}
	pollOptions := make(map[string][]lobby.PollOption)
	for _, o := range options {
		pollOptions[o.PollID] = append(pollOptions[o.PollID], lobby.PollOption{GameID: o.GameID, Stars: o.Stars})
	}
	voters := make(map[string][]int64)
	for _, v := range votes {
		voters[v.PollID] = append(voters[v.PollID], v.UserID)
	}
	for _, p := range polls {
		l.Polls = append(l.Polls, lobby.PollRef{
			PollID:    p.PollID,
			MessageID: p.MessageID,
			Options:   pollOptions[p.PollID],
			Voters:    voters[p.PollID],
		})
	}
	return l, nil
}
