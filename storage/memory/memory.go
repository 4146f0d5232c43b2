// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

// Package memory is an in-process storage.KV. Values do not survive a
// restart, which makes it the Go analogue of a page's session storage.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/byuweb/browser-oauth/storage"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired entries are purged.
const DefaultCleanupInterval = time.Minute

// Store is a TTL-aware in-memory storage.KV.
type Store struct {
	// mu serializes writers with Take so a take cannot interleave with a Set
	// of the same key.
	mu sync.Mutex
	c  *gocache.Cache
}

var _ storage.KV = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, DefaultCleanupInterval)}
}

// Get implements storage.KV.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(v.([]byte)), nil
}

// Set implements storage.KV.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.c.Set(key, clone(value), ttl)
	return nil
}

// Remove implements storage.KV.
func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Delete(key)
	return nil
}

// Take implements storage.KV.
func (s *Store) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.c.Get(key)
	s.c.Delete(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(v.([]byte)), nil
}

// Close discards every entry.
func (s *Store) Close() error {
	s.c.Flush()
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
