package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/platform/metrics"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ScoreboardCache keeps rendered scoreboards in Redis for a short TTL.
// Concurrent misses for one contest share a single database read.
type ScoreboardCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
}

// NewScoreboardCache returns nil when caching is off; a nil cache always
// calls through to the loader.
func NewScoreboardCache(rdb *redis.Client, ttl time.Duration, m *metrics.Metrics) *ScoreboardCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &ScoreboardCache{rdb: rdb, ttl: ttl, metrics: m}
}

func scoreboardKey(contestID string) string {
	return "scoreboard:" + contestID
}

type scoreboardLoader func(ctx context.Context) ([]model.ScoreboardEntry, error)

func (c *ScoreboardCache) Get(ctx context.Context, contestID string, load scoreboardLoader) ([]model.ScoreboardEntry, error) {
	if c == nil {
		return load(ctx)
	}
	key := scoreboardKey(contestID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entries []model.ScoreboardEntry
		if jsonErr := json.Unmarshal(raw, &entries); jsonErr == nil {
			c.metrics.Cache("hit")
			return entries, nil
		}
		log.WithField("key", key).Warn("discarding unreadable scoreboard cache entry")
	case !errors.Is(err, redis.Nil):
		log.WithError(err).WithField("key", key).Warn("scoreboard cache read failed")
	}

	c.metrics.Cache("miss")
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		entries, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(entries); err == nil {
			if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				log.WithError(err).WithField("key", key).Warn("scoreboard cache write failed")
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.ScoreboardEntry), nil
}

// Invalidate drops the cached scoreboard. It runs after a commit, so it
// ignores cancellation of the request that triggered it. A load that
// started before the commit can still write the old board back; the TTL
// bounds how long that stale entry lives.
func (c *ScoreboardCache) Invalidate(ctx context.Context, contestID string) {
	if c == nil {
		return
	}
	key := scoreboardKey(contestID)
	c.group.Forget(key)
	if err := c.rdb.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
		log.WithError(err).WithField("contest_id", contestID).Warn("scoreboard cache invalidation failed")
	}
}
