// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/byuweb/browser-oauth/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	t.Parallel()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	storage.TestKV(t, s)
}

func TestOpen_MissingPath(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), "")
	assert.True(t, errors.Is(err, storage.ErrInvalidParameter))
}

func TestStore_Expiry(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()

	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	s, err := Open(ctx, ":memory:", WithNow(clock))
	require.NoError(err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(s.Set(ctx, "short", []byte("v"), time.Minute))
	require.NoError(s.Set(ctx, "forever", []byte("v"), 0))
	advance(2 * time.Minute)

	_, err = s.Get(ctx, "short")
	assert.True(errors.Is(err, storage.ErrNotFound))
	_, err = s.Take(ctx, "short")
	assert.True(errors.Is(err, storage.ErrNotFound))

	require.NoError(s.Set(ctx, "short2", []byte("v"), time.Minute))
	advance(2 * time.Minute)
	n, err := s.Purge(ctx)
	require.NoError(err)
	assert.Equal(int64(1), n)

	got, err := s.Get(ctx, "forever")
	require.NoError(err)
	assert.Equal([]byte("v"), got)
}

func TestStore_Durable(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := Open(ctx, path)
	require.NoError(err)
	require.NoError(s.Set(ctx, "session", []byte("kept"), 0))
	require.NoError(s.Close())

	s, err = Open(ctx, path)
	require.NoError(err)
	t.Cleanup(func() { _ = s.Close() })
	got, err := s.Get(ctx, "session")
	require.NoError(err)
	assert.Equal([]byte("kept"), got)
}
