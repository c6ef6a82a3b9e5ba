package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

type DB struct {
	db      *sql.DB
	gorm    *gorm.DB
	dialect goose.Dialect
}

type Options struct {
	// Verbose logs every SQL statement.
	Verbose bool
	Logger  *slog.Logger
}

// IsPostgres reports whether dsn points at PostgreSQL rather than a SQLite file.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// NewDB opens a SQLite file or a PostgreSQL URL. The schema is not touched;
// call Migrate for that.
func NewDB(dsn string, opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if IsPostgres(dsn) {
		return openPostgres(dsn, opts)
	}
	return openSQLite(dsn, opts)
}

func openSQLite(path string, opts Options) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	// Write transactions take the lock up front so concurrent writers wait
	// for busy_timeout instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite", path+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	g, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", Conn: db}, gormConfig(opts))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	return &DB{db: db, gorm: g, dialect: goose.DialectSQLite3}, nil
}

func openPostgres(dsn string, opts Options) (*DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	g, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), gormConfig(opts))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	return &DB{db: db, gorm: g, dialect: goose.DialectPostgres}, nil
}

func gormConfig(opts Options) *gorm.Config {
	level := gormlogger.Warn
	if opts.Verbose {
		level = gormlogger.Info
	}
	return &gorm.Config{
		Logger: gormlogger.New(
			slog.NewLogLogger(opts.Logger.Handler(), slog.LevelDebug),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  level,
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) DB() *sql.DB {
	return d.db
}

func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}
