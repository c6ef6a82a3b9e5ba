package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/gamenight/decider/internal/lobby"
	"github.com/gamenight/decider/internal/poll"
)

// abortTimeout bounds the cleanup after a failed send, which may run after
// the handler's context expired.
const abortTimeout = 30 * time.Second

// handlePoll sends the polls for the chat's game night.
// One poll per complexity tier; a tier with a single game is announced as
// text because Telegram polls need two options.
func (b *Bot) handlePoll(ctx context.Context, c tele.Context, _ Args) error {
	l, err := b.lobbies.Get(ctx, c.Chat().ID)
	if err != nil {
		return err
	}
	return b.sendPolls(ctx, c.Chat(), l.ID)
}

func (b *Bot) onPollButton(ctx context.Context, c tele.Context, l *lobby.Lobby) error {
	if err := b.sendPolls(ctx, c.Chat(), l.ID); err != nil {
		return err
	}
	return b.api.Respond(c.Callback(), &tele.CallbackResponse{})
}

// sendPolls claims the lobby's polls, posts them and opens voting. A failed
// send takes back the polls already posted so /poll can start over.
func (b *Bot) sendPolls(ctx context.Context, chat *tele.Chat, lobbyID string) error {
	l, err := b.lobbies.BeginPolls(ctx, chat.ID, lobbyID)
	if err != nil {
		return err
	}

	sent, err := b.postPolls(ctx, chat, l)
	if err != nil {
		b.abortPolls(ctx, chat, l.ID)
		return err
	}

	l, err = b.lobbies.PollsSent(ctx, chat.ID, l.ID)
	if err != nil {
		return err
	}
	if sent == 0 {
		return b.send(chat, MsgNoPollsNeeded)
	}
	if err := b.send(chat, MsgPollsSent); err != nil {
		return err
	}
	// Everyone may have answered before the last poll went out
	if l.VotingComplete() {
		return b.closeVoting(ctx, l)
	}
	return nil
}

// postPolls sends one message per plan and records every native poll.
func (b *Bot) postPolls(ctx context.Context, chat *tele.Chat, l *lobby.Lobby) (int, error) {
	plans, err := b.polls.Plan(ctx, l)
	if err != nil {
		return 0, err
	}

	b.logger.Info("sending polls",
		"chat_id", chat.ID,
		"lobby_id", l.ID,
		"players", l.PlayerCount(),
		"plans", len(plans),
	)

	sent := 0
	for _, p := range plans {
		if p.Single() {
			text := fmt.Sprintf(MsgFmtSingleGame, html.EscapeString(p.Title()), html.EscapeString(p.Options[0].Game.Name))
			if _, err := b.SendWithRetry(chat, text, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
				return sent, fmt.Errorf("send single game: %w", err)
			}
			continue
		}

		question, err := poll.RenderTitle(p)
		if err != nil {
			return sent, fmt.Errorf("render poll title: %w", err)
		}
		tp := &tele.Poll{
			Type:            tele.PollRegular,
			Question:        question,
			MultipleAnswers: true,
			Anonymous:       false,
		}
		tp.AddOptions(p.Labels()...)

		msg, err := b.SendWithRetry(chat, tp)
		if err != nil {
			return sent, fmt.Errorf("send poll %s: %w", p.Title(), err)
		}
		ref := lobby.PollRef{
			PollID:    msg.Poll.ID,
			MessageID: msg.ID,
			Options:   pollOptions(p),
		}
		if err := b.lobbies.AddPoll(ctx, chat.ID, l.ID, ref); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// abortPolls releases the lobby's polls and deletes the ones already posted.
func (b *Bot) abortPolls(ctx context.Context, chat *tele.Chat, lobbyID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abortTimeout)
	defer cancel()

	refs, err := b.lobbies.AbortPolls(ctx, chat.ID, lobbyID)
	if errors.Is(err, lobby.ErrNoLobby) || errors.Is(err, lobby.ErrStaleLobby) {
		return
	}
	if err != nil {
		b.logger.Error("failed to abort polls", "error", err, "chat_id", chat.ID, "lobby_id", lobbyID)
		return
	}
	for _, ref := range refs {
		if err := b.api.Delete(MessageRef(chat.ID, ref.MessageID)); err != nil {
			b.logger.Warn("failed to delete aborted poll", "error", err, "poll_id", ref.PollID)
		}
	}
	if len(refs) > 0 {
		b.logger.Info("polls aborted", "chat_id", chat.ID, "lobby_id", lobbyID, "deleted", len(refs))
	}
}

// pollOptions records the game and stars behind each option in option order.
func pollOptions(p poll.Plan) []lobby.PollOption {
	options := make([]lobby.PollOption, 0, len(p.Options))
	for _, c := range p.Options {
		options = append(options, lobby.PollOption{GameID: c.Game.ID, Stars: c.Stars})
	}
	return options
}

func (b *Bot) send(chat *tele.Chat, text string) error {
	_, err := b.api.Send(chat, text, &tele.SendOptions{ParseMode: tele.ModeHTML})
	return err
}
