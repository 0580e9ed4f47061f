package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/redis"
)

func newLocker(t *testing.T) (*miniredis.Miniredis, *redis.Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, redis.NewLocker(client,
		redis.WithLockPrefix("test:"),
		redis.WithPollInterval(5*time.Millisecond),
		redis.WithLockLogger(logger.Discard()),
	)
}

func TestLocker_TryAcquire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr, l := newLocker(t)

	release, ok, err := l.TryAcquire(ctx, "owner:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:owner:1"))

	_, ok, err = l.TryAcquire(ctx, "owner:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists("test:owner:1"))

	_, ok, err = l.TryAcquire(ctx, "owner:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr, l := newLocker(t)

	stale, ok, err := l.TryAcquire(ctx, "owner:2", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	fresh, ok, err := l.TryAcquire(ctx, "owner:2", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	stale()
	assert.True(t, mr.Exists("test:owner:2"), "new holder keeps the lock")

	fresh()
	assert.False(t, mr.Exists("test:owner:2"))
}

func TestLocker_Acquire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, l := newLocker(t)

	release, err := l.Acquire(ctx, "owner:3", time.Minute)
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	again, err := l.Acquire(ctx, "owner:3", time.Minute)
	require.NoError(t, err)
	again()

	held, err := l.Acquire(ctx, "owner:4", time.Minute)
	require.NoError(t, err)
	defer held()

	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(cctx, "owner:4", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker_RejectsZeroTTL(t *testing.T) {
	t.Parallel()
	_, l := newLocker(t)
	_, _, err := l.TryAcquire(context.Background(), "k", 0)
	assert.Error(t, err)
}

func TestConnectAndHealthcheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr := miniredis.RunT(t)

	client, err := redis.Connect(ctx, redis.Config{
		ConnectionURL:  "redis://" + mr.Addr() + "/0",
		RetryAttempts:  1,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, redis.Healthcheck(client)(ctx))

	_, err = redis.Connect(ctx, redis.Config{ConnectionURL: "://bad"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)

	_, err = redis.Connect(ctx, redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
}
