// Package postgres implements [profilestore.Store] on a single PostgreSQL
// table.
//
// The table is created by [Migrate] on first use:
//
//	voiceid_slots(key TEXT PRIMARY KEY, value BYTEA, updated_at TIMESTAMPTZ)
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/voiceid/pkg/profilestore"
)

var _ profilestore.Store = (*Store)(nil)

const ddlSlots = `
CREATE TABLE IF NOT EXISTS voiceid_slots (
    key        TEXT        PRIMARY KEY,
    value      BYTEA       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store is a PostgreSQL-backed [profilestore.Store]. It is safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, verifies the connection, and runs [Migrate].
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the slot table if it does not exist. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlSlots); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Load implements [profilestore.Store.Load].
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM voiceid_slots WHERE key = $1`, key).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, profilestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: load %q: %w", key, err)
	}
	return val, nil
}

// Save implements [profilestore.Store.Save].
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	const q = `
		INSERT INTO voiceid_slots (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if value == nil {
		value = []byte{}
	}
	if _, err := s.pool.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("postgres store: save %q: %w", key, err)
	}
	return nil
}

// Delete implements [profilestore.Store.Delete].
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM voiceid_slots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres store: delete %q: %w", key, err)
	}
	return nil
}

// Ping implements [profilestore.Store.Ping].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
