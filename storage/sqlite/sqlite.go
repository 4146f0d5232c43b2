// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

// Package sqlite is a durable storage.KV in a single SQLite file. It plays
// the part browser local storage plays for a page: sessions written by one
// run are visible to the next.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/byuweb/browser-oauth/storage"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
)`

// Store implements storage.KV on a SQLite database.
type Store struct {
	db      *sql.DB
	nowFunc func() time.Time
}

var _ storage.KV = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock used for expiry checks.
func WithNow(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFunc = fn
		}
	}
}

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// private in-memory database.
func Open(ctx context.Context, path string, opt ...Option) (*Store, error) {
	const op = "sqlite.Open"
	if path == "" {
		return nil, fmt.Errorf("%s: missing database path: %w", op, storage.ErrInvalidParameter)
	}
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to open database: %w", op, err)
	}
	// a single connection keeps ":memory:" databases coherent and serializes
	// writers for file databases
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: unable to create schema: %w", op, err)
	}
	s := &Store{db: db, nowFunc: time.Now}
	for _, o := range opt {
		o(s)
	}
	return s, nil
}

// Get implements storage.KV.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "sqlite.(Store).Get"
	var (
		value     []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM kv WHERE key = ?`, key).Scan(&value, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, storage.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.expired(expiresAt) {
		return nil, storage.ErrNotFound
	}
	return value, nil
}

// Set implements storage.KV.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const op = "sqlite.(Store).Set"
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.nowFunc().Add(ttl).UnixMilli()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Remove implements storage.KV.
func (s *Store) Remove(ctx context.Context, key string) error {
	const op = "sqlite.(Store).Remove"
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Take implements storage.KV with DELETE ... RETURNING, which reads and
// removes the row in one statement.
func (s *Store) Take(ctx context.Context, key string) ([]byte, error) {
	const op = "sqlite.(Store).Take"
	var (
		value     []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `DELETE FROM kv WHERE key = ? RETURNING value, expires_at`, key).Scan(&value, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, storage.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.expired(expiresAt) {
		return nil, storage.ErrNotFound
	}
	return value, nil
}

// Purge deletes every expired row.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	const op = "sqlite.(Store).Purge"
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE expires_at > 0 AND expires_at <= ?`, s.nowFunc().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) expired(expiresAt int64) bool {
	return expiresAt > 0 && expiresAt <= s.nowFunc().UnixMilli()
}
