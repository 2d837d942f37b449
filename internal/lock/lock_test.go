package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, err := l.TryLock(ctx)
	require.NoError(t, err)

	_, err = l.TryLock(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	again, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func newRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisWithClient(client, "test:lock", ttl, nil), mr
}

func TestRedisTryLock(t *testing.T) {
	ctx := context.Background()
	first, mr := newRedis(t, time.Minute)
	second := NewRedisWithClient(first.client, "test:lock", time.Minute, nil)

	release, err := first.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock"))
	assert.Equal(t, time.Minute, mr.TTL("test:lock"))

	_, err = second.TryLock(ctx)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("test:lock"))

	release, err = second.TryLock(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisReleaseAfterTakeover(t *testing.T) {
	ctx := context.Background()
	l, mr := newRedis(t, time.Minute)

	release, err := l.TryLock(ctx)
	require.NoError(t, err)

	require.NoError(t, mr.Set("test:lock", "someone-else"))

	assert.ErrorIs(t, release(ctx), ErrNotHeld)
	got, err := mr.Get("test:lock")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisUnavailable(t *testing.T) {
	l, mr := newRedis(t, time.Minute)
	mr.Close()

	_, err := l.TryLock(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLocked)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis("not a url", time.Minute, nil)
	require.Error(t, err)
}
