package bot

// User error messages (user mistakes, shown directly)
const (
	MsgBGGUserNotFound  = "BoardGameGeek does not know that username. Check the spelling and try again."
	MsgGameNotFound     = "No such game found."
	MsgInvalidRange     = "Player counts must be at least 1, and max must not be below min."
	MsgInvalidWeight    = "Weight must be between 0 and 5."
	MsgUsernameTaken    = "That BoardGameGeek username is already linked to someone else."
	MsgEmptyGameName    = "Give me the name of the game."
	MsgNoBGGUsername    = "You have not linked a BoardGameGeek account yet. Use /setbgg &lt;username&gt;."
	MsgNoGuests         = "There are no guests in this game night yet. Add one with /addguest &lt;name&gt;."
	MsgNoLobby          = "There is no game night running. Start one with /gamenight."
	MsgStaleLobby       = "That game night is over."
	MsgEmptyGuestName   = "Give me the guest's name."
	MsgMissingGuestGame = "Which game does the guest bring? /guestgame &lt;guest&gt; &lt;game&gt;"
	MsgEmptyLobby       = "Nobody has joined yet."
	MsgNoGames          = "None of your games fit this many players."
	MsgPollsAlreadyOpen = "The polls for this game night are already open."
)

// System error messages (internal errors, hide details from user)
const (
	MsgInternalError  = "Something went wrong. Please try again later."
	MsgBGGUnavailable = "BoardGameGeek is not answering right now. Please try again in a few minutes."
)

// Format strings for dynamic messages
const (
	MsgFmtUsage         = "%s\nUsage: <code>%s</code>"
	MsgFmtAmbiguousGame = "“%s” matches several of your games:\n• %s\nPlease be more specific."
	MsgFmtUnknownGuest  = "I don't know that guest. Guests tonight: %s"

	MsgFmtSyncing      = "⏳ Importing the collection of <b>%s</b> from BoardGameGeek…"
	MsgFmtGameAdded    = "⭐ Added <b>%s</b> (%s) to your collection."
	MsgFmtMarkedPlayed = "Marked <b>%s</b> as played."
	MsgFmtExcluded     = "🚫 <b>%s</b> will stay out of polls."
	MsgFmtIncluded     = "✅ <b>%s</b> is back in polls."
	MsgFmtStarred      = "⭐ <b>%s</b> is starred."
	MsgFmtUnstarred    = "<b>%s</b> is no longer starred."
	MsgFmtJoined       = "%s joined. Players: %d."
	MsgFmtAlreadyIn    = "%s is already in."
	MsgFmtLeft         = "%s left. Players: %d."
	MsgFmtNotIn        = "%s was not in."
	MsgFmtGuestAdded   = "👤 Guest <b>%s</b> joined. Players: %d."
	MsgFmtGuestGame    = "👤 <b>%s</b> brings <b>%s</b> (%s)."
	MsgFmtSingleGame   = "🎲 %s: only <b>%s</b> fits, no vote needed."
)

const (
	MsgLobbyCancelled = "❌ Game night cancelled."
	MsgPollsSent      = "🗳️ Polls are open. They close once everyone has voted."
	MsgNoPollsNeeded  = "Every group has a single game, nothing to vote on."
)
