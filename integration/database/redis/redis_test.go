package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sentinel/core/security"
	"github.com/dmitrymomot/sentinel/integration/database/redis"
)

func TestConnect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty url", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(ctx, redis.Config{})
		assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(ctx, redis.Config{ConnectionURL: "http://localhost:6379"})
		assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
	})

	t.Run("unreachable server", func(t *testing.T) {
		t.Parallel()
		_, err := redis.Connect(ctx, redis.Config{
			ConnectionURL:  "redis://127.0.0.1:1/0",
			RetryAttempts:  2,
			RetryInterval:  10 * time.Millisecond,
			ConnectTimeout: 2 * time.Second,
		})
		assert.ErrorIs(t, err, redis.ErrRedisNotReady)
	})
}

// TestKeyStore_Live runs against a real server when REDIS_TEST_URL is set.
func TestKeyStore_Live(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx := context.Background()

	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: url, RetryAttempts: 1, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, redis.Healthcheck(client)(ctx))

	keys := redis.NewKeyStore(client, 10)
	prefix := "sentinel_test:" + t.Name() + ":"
	t.Cleanup(func() {
		found, _ := keys.Keys(ctx, prefix)
		_ = keys.Delete(ctx, found...)
	})

	require.NoError(t, keys.Set(ctx, prefix+"timed", "1", time.Minute))
	require.NoError(t, keys.Set(ctx, prefix+"pinned", "1", 0))

	found, err := keys.Keys(ctx, prefix)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{prefix + "timed", prefix + "pinned"}, found)

	ttl, err := keys.TTL(ctx, prefix+"timed")
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	ttl, err = keys.TTL(ctx, prefix+"pinned")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)

	ttl, err = keys.TTL(ctx, prefix+"missing")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-2), ttl)

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, keys.Push(ctx, prefix+"list", v))
	}
	require.NoError(t, keys.Trim(ctx, prefix+"list", 0, 1))
	n, err := client.LLen(ctx, prefix+"list").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_ = client.Close()
	_, err = keys.TTL(ctx, prefix+"timed")
	assert.ErrorIs(t, err, security.ErrStoreUnavailable)
}
