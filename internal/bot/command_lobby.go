package bot

import (
	"context"
	"fmt"
	"html"

	tele "gopkg.in/telebot.v4"

	"github.com/gamenight/decider/internal/lobby"
)

// Values for a guest game that is not in the game store yet and was given
// without a player range.
const (
	defaultGuestMinPlayers = 2
	defaultGuestMaxPlayers = 6
	defaultGuestWeight     = 2.5
)

// handleGameNight opens a new lobby in the chat, replacing the previous one,
// and posts the lobby message with its buttons.
func (b *Bot) handleGameNight(ctx context.Context, c tele.Context, _ Args) error {
	l, err := b.lobbies.Start(ctx, c.Chat().ID)
	if err != nil {
		return err
	}

	text, err := RenderLobby(l)
	if err != nil {
		return err
	}
	msg, err := b.SendWithRetry(c.Chat(), text, &tele.SendOptions{
		ParseMode:   tele.ModeHTML,
		ReplyMarkup: lobbyMarkup(l.ID),
	})
	if err != nil {
		return err
	}
	return b.lobbies.SetMessage(ctx, c.Chat().ID, l.ID, msg.ID)
}

func (b *Bot) handleJoin(ctx context.Context, c tele.Context, _ Args) error {
	notice, err := b.join(ctx, c)
	if err != nil {
		return err
	}
	_, err = b.SendTemporary(c.Chat(), notice, 0, &tele.SendOptions{ParseMode: tele.ModeHTML})
	return err
}

func (b *Bot) handleLeave(ctx context.Context, c tele.Context, _ Args) error {
	notice, err := b.leave(ctx, c)
	if err != nil {
		return err
	}
	_, err = b.SendTemporary(c.Chat(), notice, 0, &tele.SendOptions{ParseMode: tele.ModeHTML})
	return err
}

func (b *Bot) handleCancel(ctx context.Context, c tele.Context, _ Args) error {
	if err := b.cancel(ctx, c); err != nil {
		return err
	}
	return b.reply(c, MsgLobbyCancelled)
}

func (b *Bot) handleAddGuest(ctx context.Context, c tele.Context, args Args) error {
	l, guest, err := b.lobbies.AddGuest(ctx, c.Chat().ID, args.String("name"), c.Sender().ID)
	if err != nil {
		return err
	}
	b.refreshLobby(l)
	return b.reply(c, fmt.Sprintf(MsgFmtGuestAdded, html.EscapeString(guest.Name), l.PlayerCount()))
}

// handleGuestGame records a game a guest brings tonight.
// Usage: /guestgame <guest> <game> [min max weight]
// The longest guest name that prefixes the text wins, the rest is the game.
func (b *Bot) handleGuestGame(ctx context.Context, c tele.Context, args Args) error {
	minPlayers, maxPlayers, weight := defaultGuestMinPlayers, defaultGuestMaxPlayers, defaultGuestWeight
	if args.Has("min") {
		minPlayers, maxPlayers, weight = args.Int("min"), args.Int("max"), args.Float("weight")
	}

	l, guest, g, err := b.lobbies.AddGuestGame(ctx, c.Chat().ID, args.String("guest game"), minPlayers, maxPlayers, weight)
	if err != nil {
		return err
	}
	b.refreshLobby(l)
	return b.reply(c, fmt.Sprintf(MsgFmtGuestGame,
		html.EscapeString(guest.Name), html.EscapeString(g.Name), formatGameSummary(*g)))
}

func (b *Bot) onJoinButton(ctx context.Context, c tele.Context, _ *lobby.Lobby) error {
	notice, err := b.join(ctx, c)
	if err != nil {
		return err
	}
	return b.api.Respond(c.Callback(), &tele.CallbackResponse{Text: plainText(notice)})
}

func (b *Bot) onLeaveButton(ctx context.Context, c tele.Context, _ *lobby.Lobby) error {
	notice, err := b.leave(ctx, c)
	if err != nil {
		return err
	}
	return b.api.Respond(c.Callback(), &tele.CallbackResponse{Text: plainText(notice)})
}

func (b *Bot) onCancelButton(ctx context.Context, c tele.Context, _ *lobby.Lobby) error {
	if err := b.cancel(ctx, c); err != nil {
		return err
	}
	if err := b.api.Respond(c.Callback(), &tele.CallbackResponse{}); err != nil {
		b.logger.Debug("failed to answer callback", "error", err)
	}
	return b.reply(c, MsgLobbyCancelled)
}

// join adds the sender to the lobby and returns the notice to show.
func (b *Bot) join(ctx context.Context, c tele.Context) (string, error) {
	player := PlayerFromUser(c.Sender())
	l, joined, err := b.lobbies.Join(ctx, c.Chat().ID, player)
	if err != nil {
		return "", err
	}
	name := html.EscapeString(player.Name)
	if !joined {
		return fmt.Sprintf(MsgFmtAlreadyIn, name), nil
	}
	b.refreshLobby(l)
	return fmt.Sprintf(MsgFmtJoined, name, l.PlayerCount()), nil
}

func (b *Bot) leave(ctx context.Context, c tele.Context) (string, error) {
	name := html.EscapeString(DisplayName(c.Sender()))
	l, left, err := b.lobbies.Leave(ctx, c.Chat().ID, c.Sender().ID)
	if err != nil {
		return "", err
	}
	if !left {
		return fmt.Sprintf(MsgFmtNotIn, name), nil
	}
	b.refreshLobby(l)
	return fmt.Sprintf(MsgFmtLeft, name, l.PlayerCount()), nil
}

// cancel discards the lobby and takes the buttons off its message.
func (b *Bot) cancel(ctx context.Context, c tele.Context) error {
	l, err := b.lobbies.Cancel(ctx, c.Chat().ID)
	if err != nil {
		return err
	}
	b.closeLobbyMessage(l)
	b.logger.Info("game night cancelled", "chat_id", l.ChatID, "lobby_id", l.ID)
	return nil
}

// refreshLobby redraws the lobby message. Failures are logged only, the lobby
// itself is already saved.
func (b *Bot) refreshLobby(l *lobby.Lobby) {
	if l.MessageID == 0 {
		return
	}
	text, err := RenderLobby(l)
	if err != nil {
		b.logger.Error("failed to render lobby", "error", err, "lobby_id", l.ID)
		return
	}
	_, err = b.api.Edit(MessageRef(l.ChatID, l.MessageID), text, &tele.SendOptions{
		ParseMode:   tele.ModeHTML,
		ReplyMarkup: lobbyMarkup(l.ID),
	})
	if err != nil {
		// Non-critical: message may have been deleted or is unchanged
		b.logger.Warn("failed to update lobby message", "error", err, "lobby_id", l.ID)
	}
}

// closeLobbyMessage redraws the lobby message. An edit without reply markup
// drops the buttons.
func (b *Bot) closeLobbyMessage(l *lobby.Lobby) {
	if l.MessageID == 0 {
		return
	}
	text, err := RenderLobby(l)
	if err != nil {
		b.logger.Error("failed to render lobby", "error", err, "lobby_id", l.ID)
		return
	}
	_, err = b.api.Edit(MessageRef(l.ChatID, l.MessageID), text, &tele.SendOptions{ParseMode: tele.ModeHTML})
	if err != nil {
		b.logger.Warn("failed to close lobby message", "error", err, "lobby_id", l.ID)
	}
}
