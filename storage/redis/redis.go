// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

// Package redis is a storage.KV backed by Redis, for hosts that share
// handshake and session state between processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/byuweb/browser-oauth/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by a Store.
const DefaultKeyPrefix = "byu-oauth:"

// Config holds the connection settings for New.
type Config struct {
	// URL is a redis:// or rediss:// URL. When set it takes precedence over
	// Addr, Password and DB.
	URL      string
	Addr     string
	Password string
	DB       int

	KeyPrefix string
}

// Store implements storage.KV over a redis.UniversalClient.
type Store struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ storage.KV = (*Store)(nil)

// New connects to Redis and verifies the connection with a PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	const op = "redis.New"
	opts := &redis.UniversalOptions{
		Addrs:    []string{cfg.Addr},
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.URL != "" {
		o, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid redis URL: %w", op, err)
		}
		opts = &redis.UniversalOptions{
			Addrs:     []string{o.Addr},
			Password:  o.Password,
			DB:        o.DB,
			TLSConfig: o.TLSConfig,
		}
	}
	if len(opts.Addrs) == 0 || opts.Addrs[0] == "" {
		return nil, fmt.Errorf("%s: missing redis address: %w", op, storage.ErrInvalidParameter)
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: unable to connect to redis: %w", op, err)
	}
	return NewFromClient(client, cfg.KeyPrefix), nil
}

// NewFromClient wraps an existing client. An empty prefix selects
// DefaultKeyPrefix.
func NewFromClient(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Get implements storage.KV.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "redis.(Store).Get"
	b, err := s.client.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, storage.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// Set implements storage.KV.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const op = "redis.(Store).Set"
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Remove implements storage.KV.
func (s *Store) Remove(ctx context.Context, key string) error {
	const op = "redis.(Store).Remove"
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Take implements storage.KV using GETDEL, so two processes racing through
// the same callback cannot both consume the value.
func (s *Store) Take(ctx context.Context, key string) ([]byte, error) {
	const op = "redis.(Store).Take"
	b, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, storage.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(k string) string {
	return s.keyPrefix + k
}
