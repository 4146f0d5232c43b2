// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/byuweb/browser-oauth/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// testAddrEnv points the tests at an existing server instead of a container.
const testAddrEnv = "BYU_OAUTH_TEST_REDIS_ADDR"

// startRedis returns the address of a redis server for the test, starting a
// container unless testAddrEnv is set.
func startRedis(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv(testAddrEnv); addr != "" {
		return addr
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	host, err := container.Host(ctx)
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, mappedPort.Port())
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := New(ctx, Config{})
	assert.True(t, errors.Is(err, storage.ErrInvalidParameter))

	_, err = New(ctx, Config{URL: "://nope"})
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	t.Run("kv", func(t *testing.T) {
		s, err := New(ctx, Config{Addr: addr, KeyPrefix: "byu-oauth-test:"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		storage.TestKV(t, s)
	})

	t.Run("url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := New(ctx, Config{URL: "redis://" + addr + "/1"})
		require.NoError(err)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(s.Set(ctx, "k", []byte("v"), 0))
		got, err := s.Get(ctx, "k")
		require.NoError(err)
		assert.Equal([]byte("v"), got)
		require.NoError(s.Remove(ctx, "k"))
	})

	t.Run("prefix-and-ttl", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s, err := New(ctx, Config{Addr: addr})
		require.NoError(err)
		t.Cleanup(func() { _ = s.Close() })

		require.NoError(s.Set(ctx, "oauth", []byte("pending"), storage.OAuthStateTTL))
		ttl, err := s.client.PTTL(ctx, DefaultKeyPrefix+"oauth").Result()
		require.NoError(err)
		assert.Greater(ttl, storage.OAuthStateLifetime)
		assert.LessOrEqual(ttl, storage.OAuthStateTTL)

		require.NoError(s.Set(ctx, "session", []byte("s"), 0))
		ttl, err = s.client.PTTL(ctx, DefaultKeyPrefix+"session").Result()
		require.NoError(err)
		assert.Equal(time.Duration(-1), ttl, "no expiry")

		got, err := s.Take(ctx, "oauth")
		require.NoError(err)
		assert.Equal([]byte("pending"), got)
		n, err := s.client.Exists(ctx, DefaultKeyPrefix+"oauth").Result()
		require.NoError(err)
		assert.Zero(n)
		require.NoError(s.Remove(ctx, "session"))
	})
}
