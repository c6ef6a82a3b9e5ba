package bot

import (
	"context"
	"fmt"
	"html"

	tele "gopkg.in/telebot.v4"

	"github.com/gamenight/decider/internal/game"
)

func (b *Bot) handleStart(ctx context.Context, c tele.Context, _ Args) error {
	text, err := RenderStart(DisplayName(c.Sender()))
	if err != nil {
		return err
	}
	return b.reply(c, text)
}

func (b *Bot) handleHelp(ctx context.Context, c tele.Context, _ Args) error {
	text, err := RenderHelp(b.commands)
	if err != nil {
		return err
	}
	return b.reply(c, text)
}

// handleSetBGG links a BoardGameGeek account and imports its collection.
// Usage: /setbgg [username]
// - With a username: link it (first sync) or switch to it
// - Without: import the linked account again
func (b *Bot) handleSetBGG(ctx context.Context, c tele.Context, args Args) error {
	sender := c.Sender()
	label := "your linked account"
	if args.Has("username") {
		label = args.String("username")
	}

	progress, err := b.api.Send(c.Chat(), fmt.Sprintf(MsgFmtSyncing, html.EscapeString(label)),
		&tele.SendOptions{ParseMode: tele.ModeHTML})
	if err != nil {
		return err
	}

	var report *game.SyncReport
	if args.Has("username") {
		report, err = b.games.SyncCollection(ctx, sender.ID, DisplayName(sender), args.String("username"))
	} else {
		report, err = b.games.Resync(ctx, sender.ID, DisplayName(sender))
	}
	if err != nil {
		if delErr := b.api.Delete(progress); delErr != nil {
			b.logger.Debug("failed to delete progress message", "error", delErr)
		}
		return err
	}

	text, err := RenderSyncReport(report)
	if err != nil {
		return err
	}
	if _, err := b.api.Edit(progress, text, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
		b.logger.Warn("failed to edit progress message", "error", err)
		return b.reply(c, text)
	}
	return nil
}

// handleAddGame adds one game to the sender's collection.
// Usage: /addgame <name> [min max weight]
// - Name only: looked up on BoardGameGeek by exact name
// - With min, max and weight: added as a manual game
func (b *Bot) handleAddGame(ctx context.Context, c tele.Context, args Args) error {
	var (
		g   *game.Game
		err error
	)
	if args.Has("min") {
		g, err = b.games.AddManualGame(ctx, c.Sender().ID, args.String("name"),
			args.Int("min"), args.Int("max"), args.Float("weight"))
	} else {
		g, err = b.games.AddGame(ctx, c.Sender().ID, args.String("name"))
	}
	if err != nil {
		return err
	}
	return b.reply(c, fmt.Sprintf(MsgFmtGameAdded, html.EscapeString(g.Name), formatGameSummary(*g)))
}

func (b *Bot) handleGames(ctx context.Context, c tele.Context, _ Args) error {
	entries, err := b.games.Collection(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	text, err := RenderGames(entries)
	if err != nil {
		return err
	}
	return b.reply(c, text)
}

func (b *Bot) handleMarkPlayed(ctx context.Context, c tele.Context, args Args) error {
	e, err := b.games.MarkPlayed(ctx, c.Sender().ID, args.String("game"))
	if err != nil {
		return err
	}
	return b.reply(c, fmt.Sprintf(MsgFmtMarkedPlayed, html.EscapeString(e.Game.Name)))
}

func (b *Bot) handleExclude(ctx context.Context, c tele.Context, args Args) error {
	e, err := b.games.ToggleExcluded(ctx, c.Sender().ID, args.String("game"))
	if err != nil {
		return err
	}
	format := MsgFmtIncluded
	if e.Excluded() {
		format = MsgFmtExcluded
	}
	return b.reply(c, fmt.Sprintf(format, html.EscapeString(e.Game.Name)))
}

func (b *Bot) handlePriority(ctx context.Context, c tele.Context, args Args) error {
	e, err := b.games.TogglePriority(ctx, c.Sender().ID, args.String("game"))
	if err != nil {
		return err
	}
	format := MsgFmtUnstarred
	if e.Starred() {
		format = MsgFmtStarred
	}
	return b.reply(c, fmt.Sprintf(format, html.EscapeString(e.Game.Name)))
}
