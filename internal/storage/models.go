package storage

import (
	"time"

	"github.com/gamenight/decider/internal/game"
	"github.com/gamenight/decider/internal/lobby"
)

type userRow struct {
	TelegramID   int64   `gorm:"column:telegram_id;primaryKey;autoIncrement:false"`
	TelegramName string  `gorm:"column:telegram_name"`
	BGGUsername  *string `gorm:"column:bgg_username"`
	IsGuest      bool    `gorm:"column:is_guest"`
	AddedBy      *int64  `gorm:"column:added_by"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func newUserRow(u *game.User) userRow {
	row := userRow{
		TelegramID:   u.TelegramID,
		TelegramName: u.TelegramName,
		IsGuest:      u.IsGuest,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.BGGUsername != "" {
		row.BGGUsername = &u.BGGUsername
	}
	if u.AddedBy != 0 {
		row.AddedBy = &u.AddedBy
	}
	return row
}

func (r userRow) toUser() *game.User {
	u := &game.User{
		TelegramID:   r.TelegramID,
		TelegramName: r.TelegramName,
		IsGuest:      r.IsGuest,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.BGGUsername != nil {
		u.BGGUsername = *r.BGGUsername
	}
	if r.AddedBy != nil {
		u.AddedBy = *r.AddedBy
	}
	return u
}

type gameRow struct {
	ID             int64   `gorm:"column:id;primaryKey;autoIncrement:false"`
	Name           string  `gorm:"column:name"`
	MinPlayers     int     `gorm:"column:min_players"`
	MaxPlayers     int     `gorm:"column:max_players"`
	PlayingTime    int     `gorm:"column:playing_time"`
	MinPlayingTime int     `gorm:"column:min_playing_time"`
	MaxPlayingTime int     `gorm:"column:max_playing_time"`
	Weight         float64 `gorm:"column:weight"`
	Thumbnail      string  `gorm:"column:thumbnail"`
}

func (gameRow) TableName() string { return "games" }

func newGameRow(g game.Game) gameRow {
	return gameRow{
		ID:             g.ID,
		Name:           g.Name,
		MinPlayers:     g.MinPlayers,
		MaxPlayers:     g.MaxPlayers,
		PlayingTime:    g.PlayingTime,
		MinPlayingTime: g.MinPlayingTime,
		MaxPlayingTime: g.MaxPlayingTime,
		Weight:         g.Weight,
		Thumbnail:      g.Thumbnail,
	}
}

func (r gameRow) toGame() game.Game {
	return game.Game{
		ID:             r.ID,
		Name:           r.Name,
		MinPlayers:     r.MinPlayers,
		MaxPlayers:     r.MaxPlayers,
		PlayingTime:    r.PlayingTime,
		MinPlayingTime: r.MinPlayingTime,
		MaxPlayingTime: r.MaxPlayingTime,
		Weight:         r.Weight,
		Thumbnail:      r.Thumbnail,
	}
}

type collectionRow struct {
	UserID       int64   `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	GameID       int64   `gorm:"column:game_id;primaryKey;autoIncrement:false"`
	State        int     `gorm:"column:state"`
	IsNew        bool    `gorm:"column:is_new"`
	EffectiveMax *int    `gorm:"column:effective_max_players"`
	Game         gameRow `gorm:"foreignKey:GameID;references:ID"`
}

func (collectionRow) TableName() string { return "collection" }

func newCollectionRow(e game.Entry) collectionRow {
	return collectionRow{
		UserID:       e.UserID,
		GameID:       e.Game.ID,
		State:        int(e.State),
		IsNew:        e.IsNew,
		EffectiveMax: nullableInt(e.EffectiveMax),
	}
}

func (r collectionRow) toEntry() game.Entry {
	e := game.Entry{
		UserID: r.UserID,
		Game:   r.Game.toGame(),
		State:  game.State(r.State),
		IsNew:  r.IsNew,
	}
	if r.EffectiveMax != nil {
		e.EffectiveMax = *r.EffectiveMax
	}
	return e
}

// nullableInt stores 0 as NULL.
func nullableInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

type lobbyRow struct {
	ChatID       int64  `gorm:"column:chat_id;primaryKey;autoIncrement:false"`
	LobbyID      string `gorm:"column:id"`
	MessageID    int    `gorm:"column:message_id"`
	SendingPolls bool   `gorm:"column:sending_polls"`
	CreatedAt    time.Time
}

func (lobbyRow) TableName() string { return "lobbies" }

type lobbyPlayerRow struct {
	ChatID   int64  `gorm:"column:chat_id;primaryKey;autoIncrement:false"`
	UserID   int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Name     string `gorm:"column:name"`
	IsGuest  bool   `gorm:"column:is_guest"`
	AddedBy  int64  `gorm:"column:added_by"`
	Position int    `gorm:"column:position"`
}

func (lobbyPlayerRow) TableName() string { return "lobby_players" }

type lobbyGuestGameRow struct {
	ChatID   int64  `gorm:"column:chat_id;primaryKey;autoIncrement:false"`
	GuestID  int64  `gorm:"column:guest_id;primaryKey;autoIncrement:false"`
	GameID   int64  `gorm:"column:game_id;primaryKey;autoIncrement:false"`
	GameName string `gorm:"column:game_name"`
	Position int    `gorm:"column:position"`
}

func (lobbyGuestGameRow) TableName() string { return "lobby_guest_games" }

type lobbyPollRow struct {
	PollID    string `gorm:"column:poll_id;primaryKey"`
	ChatID    int64  `gorm:"column:chat_id"`
	MessageID int    `gorm:"column:message_id"`
	Position  int    `gorm:"column:position"`
}

func (lobbyPollRow) TableName() string { return "lobby_polls" }

type lobbyPollOptionRow struct {
	PollID   string `gorm:"column:poll_id;primaryKey"`
	ChatID   int64  `gorm:"column:chat_id"`
	Position int    `gorm:"column:position;primaryKey;autoIncrement:false"`
	GameID   int64  `gorm:"column:game_id"`
	Stars    int    `gorm:"column:stars"`
}

func (lobbyPollOptionRow) TableName() string { return "lobby_poll_options" }

type lobbyVoteRow struct {
	PollID   string `gorm:"column:poll_id;primaryKey"`
	ChatID   int64  `gorm:"column:chat_id"`
	UserID   int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Position int    `gorm:"column:position"`
}

func (lobbyVoteRow) TableName() string { return "lobby_poll_votes" }

// lobbyRowSet is a lobby flattened into the rows of its tables.
type lobbyRowSet struct {
	lobby      lobbyRow
	players    []lobbyPlayerRow
	guestGames []lobbyGuestGameRow
	polls      []lobbyPollRow
	options    []lobbyPollOptionRow
	votes      []lobbyVoteRow
}

func lobbyRows(l *lobby.Lobby) lobbyRowSet {
	lr := lobbyRow{
		ChatID:       l.ChatID,
		LobbyID:      l.ID,
		MessageID:    l.MessageID,
		SendingPolls: l.SendingPolls,
		CreatedAt:    l.CreatedAt,
	}

	players := make([]lobbyPlayerRow, 0, len(l.Players))
	for i, p := range l.Players {
		players = append(players, lobbyPlayerRow{
			ChatID:   l.ChatID,
			UserID:   p.UserID,
			Name:     p.Name,
			IsGuest:  p.IsGuest,
			AddedBy:  p.AddedBy,
			Position: i,
		})
	}

	guestGames := make([]lobbyGuestGameRow, 0, len(l.GuestGames))
	for i, gg := range l.GuestGames {
		guestGames = append(guestGames, lobbyGuestGameRow{
			ChatID:   l.ChatID,
			GuestID:  gg.GuestID,
			GameID:   gg.GameID,
			GameName: gg.GameName,
			Position: i,
		})
	}

	var (
		options []lobbyPollOptionRow
		votes   []lobbyVoteRow
	)
	polls := make([]lobbyPollRow, 0, len(l.Polls))
	for i, p := range l.Polls {
		polls = append(polls, lobbyPollRow{
			PollID:    p.PollID,
			ChatID:    l.ChatID,
			MessageID: p.MessageID,
			Position:  i,
		})
		for j, o := range p.Options {
			options = append(options, lobbyPollOptionRow{
				PollID:   p.PollID,
				ChatID:   l.ChatID,
				Position: j,
				GameID:   o.GameID,
				Stars:    o.Stars,
			})
		}
		for j, v := range p.Voters {
			votes = append(votes, lobbyVoteRow{PollID: p.PollID, ChatID: l.ChatID, UserID: v, Position: j})
		}
	}
	return lobbyRowSet{
		lobby:      lr,
		players:    players,
		guestGames: guestGames,
		polls:      polls,
		options:    options,
		votes:      votes,
	}
}
