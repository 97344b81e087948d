package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestLimiterExhaustsBurstThenRefills(t *testing.T) {
	rdb := newMiniRedis(t)
	l := New(rdb, "test:submit:", 1, 3)
	require.NotNil(t, l)

	now := time.UnixMilli(1_700_000_000_000)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d within burst", i)
	}
	ok, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok, "buckets are per key")

	now = now.Add(1100 * time.Millisecond)
	ok, err = l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok, "one token refilled after a second")
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	ok, err := l.Allow(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Nil(t, New(nil, "x", 1, 1))
	assert.Nil(t, New(newMiniRedis(t), "x", 0, 1))
}
