// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKV runs the behaviour every KV backend must share against kv. Keys are
// prefixed with t.Name() so a shared backend can be reused across tests.
func TestKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()
	key := func(k string) string { return t.Name() + "/" + k }

	t.Run("get-missing", func(t *testing.T) {
		_, err := kv.Get(ctx, key("missing"))
		assert.Truef(t, errors.Is(err, ErrNotFound), "wanted ErrNotFound, got %v", err)
	})
	t.Run("set-get-overwrite", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		require.NoError(kv.Set(ctx, key("a"), []byte("one"), 0))
		got, err := kv.Get(ctx, key("a"))
		require.NoError(err)
		assert.Equal([]byte("one"), got)

		require.NoError(kv.Set(ctx, key("a"), []byte("two"), OAuthStateTTL))
		got, err = kv.Get(ctx, key("a"))
		require.NoError(err)
		assert.Equal([]byte("two"), got)
	})
	t.Run("remove", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		require.NoError(kv.Set(ctx, key("b"), []byte("value"), 0))
		require.NoError(kv.Remove(ctx, key("b")))
		require.NoError(kv.Remove(ctx, key("b")))
		_, err := kv.Get(ctx, key("b"))
		assert.True(errors.Is(err, ErrNotFound))
	})
	t.Run("take-once", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		require.NoError(kv.Set(ctx, key("c"), []byte("value"), OAuthStateTTL))
		got, err := kv.Take(ctx, key("c"))
		require.NoError(err)
		assert.Equal([]byte("value"), got)

		_, err = kv.Take(ctx, key("c"))
		assert.True(errors.Is(err, ErrNotFound))
		_, err = kv.Get(ctx, key("c"))
		assert.True(errors.Is(err, ErrNotFound))
	})
}
