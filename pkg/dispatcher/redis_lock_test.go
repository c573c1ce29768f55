package dispatcher

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) (*redis.Client, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, "redis://"+endpoint)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client, ctx
}

func TestRedisLocker(t *testing.T) {
	client, ctx := setupRedis(t)

	t.Run("exclusive until released", func(t *testing.T) {
		first := NewRedisLocker(client)
		second := NewRedisLocker(client)

		lease, ok, err := first.Acquire(ctx, "https://example.com", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		_, ok, err = second.Acquire(ctx, "https://example.com", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, lease.Release(ctx))

		again, ok, err := second.Acquire(ctx, "https://example.com", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, again.Release(ctx))
	})

	t.Run("expired lease cannot release a newer holder", func(t *testing.T) {
		locker := NewRedisLocker(client)

		stale, ok, err := locker.Acquire(ctx, "https://expiring.example.com", 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(300 * time.Millisecond)

		fresh, ok, err := locker.Acquire(ctx, "https://expiring.example.com", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		assert.ErrorIs(t, stale.Release(ctx), ErrLeaseLost)

		_, ok, err = locker.Acquire(ctx, "https://expiring.example.com", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "fresh lease must survive the stale release")

		require.NoError(t, fresh.Release(ctx))
	})

	t.Run("keys are namespaced", func(t *testing.T) {
		locker := NewRedisLocker(client)

		lease, ok, err := locker.Acquire(ctx, "https://ns.example.com", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		exists, err := client.Exists(ctx, redisKeyPrefix+"https://ns.example.com").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)

		require.NoError(t, lease.Release(ctx))
	})
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")
}
