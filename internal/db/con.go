package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"strings"

	// Postgres driver.
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	// SQLite driver.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	// DriverSQLite selects the embedded SQLite database.
	DriverSQLite = "sqlite"
	// DriverPostgres selects a Postgres server.
	DriverPostgres = "postgres"
)

// Config selects and locates the database.
type Config struct {
	Driver string
	// Path is the SQLite file path without extension.
	Path string
	// DSN is the Postgres connection string.
	DSN string
	// OpenParams are extra SQLite DSN query parameters.
	OpenParams []string
}

// Database wraps the bun handle with the shared connection.
type Database struct {
	bun     *bun.DB
	db      *sql.DB
	driver  string
	tracker *queryLatencyTracker
}

// New opens the database described by cfg and applies migrations.
func New(cfg Config) (*Database, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverSQLite
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	switch driver {
	case DriverSQLite:
		path := cfg.Path
		if path == "" {
			path = "data/default"
		}
		sqlDB, err = sql.Open(DriverSQLite, sqliteDSN(path, cfg.OpenParams...))
	case DriverPostgres:
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		sqlDB, err = sql.Open(DriverPostgres, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(sqlDB, driver); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	var bunDB *bun.DB
	if driver == DriverPostgres {
		bunDB = bun.NewDB(sqlDB, pgdialect.New())
	} else {
		// SQLite allows a single writer; serialize through one connection.
		sqlDB.SetMaxOpenConns(1)
		bunDB = bun.NewDB(sqlDB, sqlitedialect.New())
	}

	tracker := newQueryLatencyTracker()
	bunDB.AddQueryHook(newQueryHook(driver, tracker))

	return &Database{bun: bunDB, db: sqlDB, driver: driver, tracker: tracker}, nil
}

func migrate(db *sql.DB, driver string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func sqliteDSN(path string, openParams ...string) string {
	values := url.Values{}
	values.Add("_pragma", "foreign_keys(ON)")
	values.Add("_pragma", "journal_mode(WAL)")
	values.Add("_pragma", "synchronous(NORMAL)")
	values.Add("_pragma", "busy_timeout(5000)")

	for _, param := range openParams {
		part := strings.TrimSpace(strings.TrimPrefix(param, "&"))
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		values.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	return fmt.Sprintf("file:%s.sqlite?%s", path, values.Encode())
}

// Driver returns the active driver name.
func (c *Database) Driver() string {
	return c.driver
}

// Ping checks connectivity.
func (c *Database) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (c *Database) Close() error {
	return c.bun.Close()
}
