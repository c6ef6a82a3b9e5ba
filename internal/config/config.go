package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultDatabaseURL = "game_night.db"
	DefaultLobbyTTL    = 24 * time.Hour
)

type Config struct {
	TelegramToken string
	DatabaseURL   string
	BGGToken      string
	RedisURL      string
	LobbyTTL      time.Duration
	SentryDSN     string
	LogLevel      slog.Level
	WeightedVotes bool
	DBVerbose     bool
}

// Load reads the configuration from the environment. Values from a .env file
// in the working directory fill in variables that are not already set.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	return load(path, true)
}

// LoadForMigrations is Load without the bot token, for the migrate command.
func LoadForMigrations() (*Config, error) {
	return load(".env", false)
}

func load(path string, requireToken bool) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" && requireToken {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramToken: token,
		DatabaseURL:   envOr("DATABASE_URL", DefaultDatabaseURL),
		BGGToken:      os.Getenv("BGG_API_TOKEN"),
		RedisURL:      os.Getenv("REDIS_URL"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
	}

	var err error
	if cfg.LobbyTTL, err = durationEnv("LOBBY_TTL", DefaultLobbyTTL); err != nil {
		return nil, err
	}
	if cfg.WeightedVotes, err = boolEnv("WEIGHTED_VOTES", true); err != nil {
		return nil, err
	}
	if cfg.DBVerbose, err = boolEnv("DB_VERBOSE", false); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = levelEnv("LOG_LEVEL", slog.LevelInfo); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func levelEnv(key string, def slog.Level) (slog.Level, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return level, nil
}
