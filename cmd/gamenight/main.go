package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/gamenight/decider/internal/bot"
	"github.com/gamenight/decider/internal/catalog"
	"github.com/gamenight/decider/internal/config"
	"github.com/gamenight/decider/internal/game"
	"github.com/gamenight/decider/internal/lobby"
	"github.com/gamenight/decider/internal/logger"
	"github.com/gamenight/decider/internal/poll"
	"github.com/gamenight/decider/internal/storage"
)

const usage = "usage: gamenight [run | migrate up|down|status]"

func main() {
	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
	}

	var err error
	switch cmd {
	case "run":
		err = run()
	case "migrate":
		err = migrate(args[1:])
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		err = fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "gamenight: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel)
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		log = logger.NewWithSentry(cfg.LogLevel)
	}

	log.Info("config loaded",
		"postgres", storage.IsPostgres(cfg.DatabaseURL),
		"redis", cfg.RedisURL != "",
		"weighted_votes", cfg.WeightedVotes,
		"sentry", cfg.SentryDSN != "",
	)

	ctx := context.Background()

	db, err := storage.NewDB(cfg.DatabaseURL, storage.Options{Verbose: cfg.DBVerbose, Logger: log})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	applied, err := db.Migrate(ctx)
	if err != nil {
		return err
	}
	log.Info("database initialized", "applied_migrations", applied)

	var lobbyStore lobby.Store = storage.NewLobbyStore(db)
	if cfg.RedisURL != "" {
		client, err := storage.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		lobbyStore = storage.NewRedisLobbyStore(client, cfg.LobbyTTL)
		log.Info("lobbies kept in redis", "ttl", cfg.LobbyTTL)
	}

	bgg := catalog.New(catalog.WithToken(cfg.BGGToken), catalog.WithLogger(log))
	games := game.NewService(
		storage.NewUserRepository(db),
		storage.NewGameRepository(db),
		storage.NewCollectionRepository(db),
		bgg,
		log,
	)
	lobbies := lobby.NewService(lobbyStore, games, log)

	if err := bot.InitTemplates(); err != nil {
		return err
	}

	b, err := bot.New(cfg.TelegramToken, bot.Services{
		Games:   games,
		Lobbies: lobbies,
		Polls:   poll.NewGenerator(games),
	}, bot.Options{WeightedVotes: cfg.WeightedVotes}, log)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}
	b.Register()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Info("shutting down", "signal", sig.String())
		b.Stop()
	}()

	b.Start()
	return nil
}

// migrate runs the schema migrations by hand.
func migrate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s", usage)
	}

	cfg, err := config.LoadForMigrations()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	db, err := storage.NewDB(cfg.DatabaseURL, storage.Options{Verbose: cfg.DBVerbose, Logger: log})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	switch args[0] {
	case "up":
		applied, err := db.Migrate(ctx)
		if err != nil {
			return err
		}
		log.Info("migrated", "applied", applied)
	case "down":
		version, err := db.Rollback(ctx)
		if err != nil {
			return err
		}
		log.Info("rolled back", "version", version)
	case "status":
		statuses, err := db.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			attrs := []any{"version", s.Version, "name", s.Name, "applied", s.Applied}
			if s.Applied {
				attrs = append(attrs, "applied_at", s.AppliedAt.Format(time.DateTime))
			}
			log.Info("migration", attrs...)
		}
	default:
		return fmt.Errorf("unknown migrate command %q\n%s", args[0], usage)
	}
	return nil
}
