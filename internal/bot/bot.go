package bot

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"
	"gopkg.in/telebot.v4/middleware"

	"github.com/gamenight/decider/internal/game"
	"github.com/gamenight/decider/internal/lobby"
	"github.com/gamenight/decider/internal/poll"
)

// handlerTimeout bounds one update, a collection import included.
const handlerTimeout = 2 * time.Minute

// Services are the domain services the handlers call.
type Services struct {
	Games   *game.Service
	Lobbies *lobby.Service
	Polls   *poll.Generator
}

type Options struct {
	WeightedVotes bool
}

type Bot struct {
	bot         *tele.Bot
	api         API
	games       *game.Service
	lobbies     *lobby.Service
	polls       *poll.Generator
	logger      *slog.Logger
	weighted    bool
	sendBackoff time.Duration
	commands    []Command
}

func New(token string, svc Services, opts Options, logger *slog.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token: token,
		Poller: &tele.LongPoller{
			Timeout:        10 * time.Second,
			AllowedUpdates: []string{"message", "callback_query", "poll_answer"},
		},
		OnError: func(err error, c tele.Context) {
			logger.Error("update failed", "error", err)
		},
	}

	tg, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	b := newBot(tg, svc, opts, logger)
	b.bot = tg
	return b, nil
}

func newBot(api API, svc Services, opts Options, logger *slog.Logger) *Bot {
	b := &Bot{
		api:         api,
		games:       svc.Games,
		lobbies:     svc.Lobbies,
		polls:       svc.Polls,
		logger:      logger,
		weighted:    opts.WeightedVotes,
		sendBackoff: sendBackoff,
	}
	b.commands = b.commandTable()
	return b
}

func (b *Bot) Start() {
	b.logger.Info("bot started", "username", b.bot.Me.Username)
	b.bot.Start()
}

func (b *Bot) Stop() {
	b.bot.Stop()
}

// Register installs the middleware, the command table, the lobby buttons and
// the poll answer handler, and publishes the command list to Telegram.
func (b *Bot) Register() {
	b.bot.Use(middleware.Recover())
	b.bot.Use(b.HandleErrors())

	menu := make([]tele.Command, 0, len(b.commands))
	for _, cmd := range b.commands {
		b.bot.Handle("/"+cmd.Name, b.dispatch(cmd))
		menu = append(menu, tele.Command{Text: cmd.Name, Description: cmd.Description})
	}
	if err := b.bot.SetCommands(menu); err != nil {
		b.logger.Warn("failed to publish command list", "error", err)
	}

	b.bot.Handle(&btnJoin, b.button("join", b.onJoinButton))
	b.bot.Handle(&btnLeave, b.button("leave", b.onLeaveButton))
	b.bot.Handle(&btnPoll, b.button("poll", b.onPollButton))
	b.bot.Handle(&btnCancel, b.button("cancel", b.onCancelButton))

	b.bot.Handle(tele.OnPollAnswer, b.handlePollAnswer)
}

// dispatch parses the command's arguments and runs its handler with a
// bounded context. The sender is registered on first contact.
func (b *Bot) dispatch(cmd Command) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil || c.Chat() == nil {
			return nil
		}

		b.logger.Info("command /"+cmd.Name,
			"user_id", sender.ID,
			"username", sender.Username,
			"chat_id", c.Chat().ID,
		)

		args, err := ParseArgs(cmd, c.Message().Payload)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if _, err := b.games.EnsureUser(ctx, sender.ID, DisplayName(sender)); err != nil {
			return err
		}
		return cmd.Handler(ctx, c, args)
	}
}

// buttonHandler handles a lobby button press. The lobby is already checked
// against the button's lobby ID.
type buttonHandler func(ctx context.Context, c tele.Context, l *lobby.Lobby) error

func (b *Bot) button(name string, h buttonHandler) tele.HandlerFunc {
	return func(c tele.Context) error {
		cb := c.Callback()
		sender := c.Sender()
		if cb == nil || sender == nil || c.Chat() == nil {
			return nil
		}

		b.logger.Info("button "+name,
			"user_id", sender.ID,
			"username", sender.Username,
			"chat_id", c.Chat().ID,
		)

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		l, err := b.lobbies.Current(ctx, c.Chat().ID, c.Data())
		if err != nil {
			return err
		}
		if _, err := b.games.EnsureUser(ctx, sender.ID, DisplayName(sender)); err != nil {
			return err
		}
		return h(ctx, c, l)
	}
}

func (b *Bot) reply(c tele.Context, text string) error {
	_, err := b.api.Send(c.Chat(), text, &tele.SendOptions{ParseMode: tele.ModeHTML})
	return err
}
