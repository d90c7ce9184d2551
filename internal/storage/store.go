package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"mandi-pricecheck/internal/config"
)

const defaultQueryTimeout = 30 * time.Second

// NewPool configures a PostgreSQL connection pool from runtime settings.
// The pool connects lazily; Open pings it.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" && cfg.Host == "" {
		return nil, ErrNotConfigured
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		// the parse error may echo the connection string
		return nil, fmt.Errorf("parse database config for %s: invalid connection settings", cfg.Address())
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// Open builds a pool, exposes it as *sql.DB and verifies connectivity within
// the configured connect timeout. Nothing is left open on failure.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	store := &Store{db: db, pool: pool, queryTimeout: cfg.QueryTimeout}
	if store.queryTimeout <= 0 {
		store.queryTimeout = defaultQueryTimeout
	}

	pingCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Address(), err)
	}

	return store, nil
}

// Store provides read access to the price tables.
type Store struct {
	db           *sql.DB
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewStore wraps an existing *sql.DB, typically a test double.
func NewStore(db *sql.DB, queryTimeout time.Duration) *Store {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &Store{db: db, queryTimeout: queryTimeout}
}

// Close releases the handle and the underlying pool.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func (s *Store) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// IsTableMissing reports whether err stems from an absent table.
func IsTableMissing(err error) bool {
	return errors.Is(err, ErrTableMissing)
}
