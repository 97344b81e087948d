package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctf_zone/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreboardCache(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cache := NewScoreboardCache(rdb, 15*time.Second, nil)
	ctx := context.Background()

	loads := 0
	load := func(context.Context) ([]model.ScoreboardEntry, error) {
		loads++
		return []model.ScoreboardEntry{{Rank: 1, UserID: 1, Username: "alice", Points: 100}}, nil
	}

	first, err := cache.Get(ctx, "c1", load)
	require.NoError(t, err)
	second, err := cache.Get(ctx, "c1", load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("scoreboard:c1"))

	cache.Invalidate(ctx, "c1")
	_, err = cache.Get(ctx, "c1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)

	mr.FastForward(16 * time.Second)
	assert.False(t, mr.Exists("scoreboard:c1"))
}

func TestScoreboardCache_LoadErrorNotCached(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cache := NewScoreboardCache(rdb, time.Minute, nil)

	_, err := cache.Get(context.Background(), "c1", func(context.Context) ([]model.ScoreboardEntry, error) {
		return nil, errors.New("db down")
	})
	require.Error(t, err)
	assert.False(t, mr.Exists("scoreboard:c1"))
}

func TestScoreboardCache_NilPassesThrough(t *testing.T) {
	var cache *ScoreboardCache
	entries, err := cache.Get(context.Background(), "c1", func(context.Context) ([]model.ScoreboardEntry, error) {
		return []model.ScoreboardEntry{}, nil
	})
	require.NoError(t, err)
	assert.Empty(t, entries)
	cache.Invalidate(context.Background(), "c1")
}

func TestScoreboardCache_InvalidateAfterRequestCancelled(t *testing.T) {
	mr, rdb := newTestRedis(t)
	cache := NewScoreboardCache(rdb, 15*time.Second, nil)
	require.NoError(t, mr.Set("scoreboard:c1", "[]"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cache.Invalidate(ctx, "c1")

	assert.False(t, mr.Exists("scoreboard:c1"))
}
