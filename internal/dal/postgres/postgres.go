package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

// SQLSTATE codes that signal a transaction lost a race and may be retried.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Client represents a Postgres client.
type Client struct {
	pool      *pgxpool.Pool
	db        *sqlx.DB
	isolation sql.IsolationLevel
}

// DB returns the pool wrapped as a sqlx handle.
func (p *Client) DB() *sqlx.DB {
	return p.db
}

// TxOptions returns the options every write transaction is opened with.
func (p *Client) TxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: p.isolation}
}

// IsConflict reports whether err is a serialization failure or a deadlock.
func (p *Client) IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// Close closes the database connection for graceful shutdown.
func (p *Client) Close() {
	if err := p.db.Close(); err != nil {
		slog.Error("failed to close postgres handle", "error", err)
	}
	p.pool.Close()
}

// Migrate applies the embedded schema migrations.
func (p *Client) Migrate() error {
	goose.SetBaseFS(migrations.Postgres)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(p.db.DB, "postgres"); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

func parseIsolation(s string) (sql.IsolationLevel, error) {
	switch s {
	case "", "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return 0, fmt.Errorf("unknown isolation level %q", s)
	}
}

// NewClient connects to Postgres. Migrations run when cfg.Migrate is set.
func NewClient(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	isolation, err := parseIsolation(cfg.Postgres.Isolation)
	if err != nil {
		return nil, err
	}

	return NewClientFromDSN(ctx, cfg.Postgres.DSN(), cfg.Postgres.MaxConns, isolation, cfg.Migrate)
}

// NewClientFromDSN connects to Postgres with an explicit connection string.
func NewClientFromDSN(
	ctx context.Context,
	dsn string,
	maxConns int32,
	isolation sql.IsolationLevel,
	migrate bool,
) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		pool:      pool,
		db:        sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"),
		isolation: isolation,
	}

	if migrate {
		if err := client.Migrate(); err != nil {
			client.Close()
			return nil, err
		}
	}

	slog.Info("Postgres connected", "max_conns", poolCfg.MaxConns, "isolation", isolation.String())

	return client, nil
}
