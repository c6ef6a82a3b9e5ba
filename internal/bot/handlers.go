package bot

import (
	"context"
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/gamenight/decider/internal/lobby"
	"github.com/gamenight/decider/internal/poll"
)

// handlePollAnswer tracks who answered the lobby's polls and closes the vote
// once every registered player answered all of them. Errors are logged here,
// a poll answer has no chat to reply to.
func (b *Bot) handlePollAnswer(c tele.Context) error {
	answer := c.PollAnswer()
	if answer == nil || answer.Sender == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var (
		l   *lobby.Lobby
		err error
	)
	retracted := len(answer.Options) == 0
	if retracted {
		l, err = b.lobbies.RetractVote(ctx, answer.PollID, answer.Sender.ID)
	} else {
		l, err = b.lobbies.RecordVote(ctx, answer.PollID, answer.Sender.ID)
	}
	if errors.Is(err, lobby.ErrNoLobby) || errors.Is(err, lobby.ErrStaleLobby) {
		return nil // Not our poll, or its game night is over
	}
	if err != nil {
		b.logger.Error("failed to record vote", "error", err, "poll_id", answer.PollID, "user_id", answer.Sender.ID)
		return nil
	}

	b.logger.Info("vote recorded",
		"user_id", answer.Sender.ID,
		"username", answer.Sender.Username,
		"poll_id", answer.PollID,
		"retracted", retracted,
	)

	if !l.VotingComplete() {
		return nil
	}
	if err := b.closeVoting(ctx, l); err != nil {
		b.logger.Error("failed to close voting", "error", err, "chat_id", l.ChatID, "lobby_id", l.ID)
	}
	return nil
}

// closeVoting stops the lobby's polls, announces the winner and ends the
// game night. Only the first caller for a lobby gets past Finish.
func (b *Bot) closeVoting(ctx context.Context, l *lobby.Lobby) error {
	finished, err := b.lobbies.Finish(ctx, l.ChatID, l.ID)
	if errors.Is(err, lobby.ErrStaleLobby) {
		return nil
	}
	if err != nil {
		return err
	}

	options := b.finalVotes(finished)
	if err := b.nameOptions(ctx, options); err != nil {
		return err
	}
	result := poll.Tally(optionVotes(options), b.weighted)

	text, err := poll.RenderResult(result)
	if err != nil {
		return fmt.Errorf("render result: %w", err)
	}
	chat := &tele.Chat{ID: finished.ChatID}
	if _, err := b.SendWithRetry(chat, text, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
		return fmt.Errorf("send result: %w", err)
	}
	b.closeLobbyMessage(finished)

	winners := make([]string, 0, len(result.Winners))
	for _, w := range result.Winners {
		winners = append(winners, w.Name)
	}
	b.logger.Info("game night decided",
		"chat_id", finished.ChatID,
		"lobby_id", finished.ID,
		"winners", winners,
	)
	return nil
}

// finalOption is one option of a stopped poll with the game recorded for it.
type finalOption struct {
	poll.OptionVotes
	GameID int64
}

// finalVotes stops the lobby's polls and collects their counts. Options are
// matched to games by position, their labels may no longer reflect the
// collection.
func (b *Bot) finalVotes(l *lobby.Lobby) []finalOption {
	var options []finalOption
	for _, ref := range l.Polls {
		stopped, err := b.api.StopPoll(MessageRef(l.ChatID, ref.MessageID))
		if err != nil {
			// The poll may have been deleted from the chat
			b.logger.Warn("failed to stop poll", "error", err, "poll_id", ref.PollID)
			continue
		}
		for i, o := range stopped.Options {
			opt := finalOption{OptionVotes: poll.OptionVotes{
				Name:  poll.StripMarkers(o.Text),
				Votes: o.VoterCount,
			}}
			if i < len(ref.Options) {
				opt.GameID = ref.Options[i].GameID
				opt.Stars = ref.Options[i].Stars
			}
			options = append(options, opt)
		}
	}
	return options
}

// nameOptions replaces option labels with the full game names, which
// labels may have truncated.
func (b *Bot) nameOptions(ctx context.Context, options []finalOption) error {
	ids := make([]int64, 0, len(options))
	for _, o := range options {
		if o.GameID != 0 {
			ids = append(ids, o.GameID)
		}
	}
	games, err := b.games.Games(ctx, ids)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(games))
	for _, g := range games {
		names[g.ID] = g.Name
	}
	for i := range options {
		if name, ok := names[options[i].GameID]; ok {
			options[i].Name = name
		}
	}
	return nil
}

func optionVotes(options []finalOption) []poll.OptionVotes {
	out := make([]poll.OptionVotes, 0, len(options))
	for _, o := range options {
		out = append(out, o.OptionVotes)
	}
	return out
}
