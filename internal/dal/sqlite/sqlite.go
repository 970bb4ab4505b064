package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// Client represents an embedded SQLite database.
// All access goes through a single connection; BEGIN IMMEDIATE makes write
// transactions queue on the database lock instead of failing late.
type Client struct {
	db *sqlx.DB
}

// DB returns the sqlx handle.
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// TxOptions returns nil: SQLite transactions are always serializable.
func (c *Client) TxOptions() *sql.TxOptions {
	return nil
}

// IsConflict reports whether err means the database was busy or locked.
func (c *Client) IsConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// Close closes the database.
func (c *Client) Close() {
	if err := c.db.Close(); err != nil {
		slog.Error("failed to close sqlite database", "error", err)
	}
}

// Migrate applies the embedded schema migrations.
func (c *Client) Migrate() error {
	goose.SetBaseFS(migrations.SQLite)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(c.db.DB, "sqlite"); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// DSN builds the connection string for a database file.
func DSN(path string) string {
	return fmt.Sprintf(
		"file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL",
		path,
	)
}

// Open opens (creating if needed) the database file at path.
func Open(path string, migrate bool) (*Client, error) {
	db, err := sqlx.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	client := &Client{db: db}
	if migrate {
		if err := client.Migrate(); err != nil {
			client.Close()
			return nil, err
		}
	}

	slog.Info("SQLite opened", "path", path)

	return client, nil
}

// NewClient opens the database configured in cfg.
func NewClient(cfg config.StorageConfig) (*Client, error) {
	return Open(cfg.SQLite.Path, cfg.Migrate)
}
