package bot

import tele "gopkg.in/telebot.v4"

// Lobby buttons. Their data is the lobby ID, so presses on the message of an
// older lobby are rejected.
var (
	btnJoin   = tele.Btn{Unique: "lobby_join"}
	btnLeave  = tele.Btn{Unique: "lobby_leave"}
	btnPoll   = tele.Btn{Unique: "lobby_poll"}
	btnCancel = tele.Btn{Unique: "lobby_cancel"}
)

func lobbyMarkup(lobbyID string) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	m.Inline(
		m.Row(
			m.Data("✋ Join", btnJoin.Unique, lobbyID),
			m.Data("👋 Leave", btnLeave.Unique, lobbyID),
		),
		m.Row(
			m.Data("🗳️ Poll", btnPoll.Unique, lobbyID),
			m.Data("❌ Cancel", btnCancel.Unique, lobbyID),
		),
	)
	return m
}
