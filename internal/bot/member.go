package bot

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/gamenight/decider/internal/lobby"
)

// DisplayName returns the best available name for a Telegram user.
// Priority: first and last name > @username > numeric ID.
func DisplayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "user " + strconv.FormatInt(u.ID, 10)
}

// PlayerFromUser turns the sender of an update into a lobby player.
func PlayerFromUser(u *tele.User) lobby.Player {
	return lobby.Player{UserID: u.ID, Name: DisplayName(u)}
}
