package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/gamenight/decider/internal/catalog"
	"github.com/gamenight/decider/internal/game"
	"github.com/gamenight/decider/internal/lobby"
	"github.com/gamenight/decider/internal/poll"
)

// UserError represents an error that should be shown to the user.
// The message is safe to display directly.
type UserError struct {
	Message string // HTML shown in the chat
	Cause   error  // original error for logging, optional
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// UserErrorf creates a new user-facing error with a formatted message.
func UserErrorf(format string, args ...any) *UserError {
	return &UserError{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapUserError wraps an internal error with a user-friendly message.
// The cause is logged, the message is shown.
func WrapUserError(message string, cause error) *UserError {
	return &UserError{
		Message: message,
		Cause:   cause,
	}
}

// toUserError maps domain errors to what the chat should see. Errors caused
// by the user come back without a cause and are not logged. Anything else
// gets a generic message.
func toUserError(err error) *UserError {
	var (
		userErr    *UserError
		usageErr   *UsageError
		serviceErr *catalog.ServiceError
		ambiguous  *game.AmbiguousError
		noMatch    *game.NoExactMatchError
		guestErr   *lobby.UnknownGuestError
	)
	switch {
	case errors.As(err, &userErr):
		return userErr
	case errors.As(err, &usageErr):
		return UserErrorf(MsgFmtUsage, html.EscapeString(usageErr.Reason), html.EscapeString(usageErr.Usage))
	case errors.As(err, &serviceErr):
		return WrapUserError(MsgBGGUnavailable, err)
	case errors.Is(err, catalog.ErrUserNotFound):
		return UserErrorf(MsgBGGUserNotFound)
	case errors.As(err, &noMatch):
		text, renderErr := RenderSuggestions(noMatch)
		if renderErr != nil {
			return WrapUserError(MsgInternalError, renderErr)
		}
		return UserErrorf("%s", text)
	case errors.As(err, &ambiguous):
		names := make([]string, 0, len(ambiguous.Matches))
		for _, g := range ambiguous.Matches {
			names = append(names, html.EscapeString(g.Name))
		}
		return UserErrorf(MsgFmtAmbiguousGame, html.EscapeString(ambiguous.Query), strings.Join(names, "\n• "))
	case errors.Is(err, game.ErrNotFound):
		return UserErrorf(MsgGameNotFound)
	case errors.Is(err, game.ErrInvalidRange):
		return UserErrorf(MsgInvalidRange)
	case errors.Is(err, game.ErrInvalidWeight):
		return UserErrorf(MsgInvalidWeight)
	case errors.Is(err, game.ErrUsernameTaken):
		return UserErrorf(MsgUsernameTaken)
	case errors.Is(err, game.ErrEmptyName):
		return UserErrorf(MsgEmptyGameName)
	case errors.Is(err, game.ErrNoBGGUsername):
		return UserErrorf(MsgNoBGGUsername)
	case errors.As(err, &guestErr):
		if len(guestErr.Guests) == 0 {
			return UserErrorf(MsgNoGuests)
		}
		names := make([]string, 0, len(guestErr.Guests))
		for _, g := range guestErr.Guests {
			names = append(names, html.EscapeString(g))
		}
		return UserErrorf(MsgFmtUnknownGuest, strings.Join(names, ", "))
	case errors.Is(err, lobby.ErrNoLobby):
		return UserErrorf(MsgNoLobby)
	case errors.Is(err, lobby.ErrStaleLobby):
		return UserErrorf(MsgStaleLobby)
	case errors.Is(err, lobby.ErrEmptyGuestName):
		return UserErrorf(MsgEmptyGuestName)
	case errors.Is(err, lobby.ErrPollsOpen):
		return UserErrorf(MsgPollsAlreadyOpen)
	case errors.Is(err, lobby.ErrMissingGame):
		return UserErrorf(MsgMissingGuestGame)
	case errors.Is(err, poll.ErrEmptyLobby):
		return UserErrorf(MsgEmptyLobby)
	case errors.Is(err, poll.ErrNoGames):
		return UserErrorf(MsgNoGames)
	}
	return WrapUserError(MsgInternalError, err)
}

// HandleErrors answers failed handlers in the chat. Unexpected errors are
// logged at Error level, which also reports them to Sentry.
func (b *Bot) HandleErrors() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			ue := toUserError(err)
			if ue.Cause != nil {
				attrs := []any{"error", err}
				if chat := c.Chat(); chat != nil {
					attrs = append(attrs, "chat_id", chat.ID)
				}
				if sender := c.Sender(); sender != nil {
					attrs = append(attrs, "user_id", sender.ID)
				}
				if catalog.IsServiceError(err) {
					b.logger.Warn("catalog unavailable", attrs...)
				} else {
					b.logger.Error("handler failed", attrs...)
				}
			}

			if cb := c.Callback(); cb != nil {
				return b.api.Respond(cb, &tele.CallbackResponse{
					Text:      truncateRunes(plainText(ue.Message), callbackAlertLimit),
					ShowAlert: true,
				})
			}
			if c.Chat() == nil {
				return nil
			}
			_, sendErr := b.api.Send(c.Chat(), ue.Message, tele.ModeHTML)
			return sendErr
		}
	}
}

const callbackAlertLimit = 200

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// plainText strips the markup from a message for callback alerts.
func plainText(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return html.UnescapeString(b.String())
}
