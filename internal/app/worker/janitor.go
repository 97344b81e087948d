package worker

import (
	"context"
	"errors"
	"time"

	"ctf_zone/internal/domain/repository"
	"ctf_zone/internal/platform/metrics"
	"ctf_zone/internal/platform/queue"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type JanitorConfig struct {
	Schedule string
	LockKey  string
	LockTTL  time.Duration
	// Unverified accounts older than this are removed.
	MaxAge time.Duration
}

// Janitor periodically purges registrations whose confirmation link can no
// longer be used. A Redis lease keeps replicas from running it twice.
type Janitor struct {
	rdb      *redis.Client
	userRepo repository.UserRepository
	cfg      JanitorConfig
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewJanitor(rdb *redis.Client, userRepo repository.UserRepository, cfg JanitorConfig, m *metrics.Metrics) *Janitor {
	return &Janitor{rdb: rdb, userRepo: userRepo, cfg: cfg, metrics: m, now: time.Now}
}

// RunOnce purges stale registrations. It returns 0 without error when
// another replica holds the lease.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	lock, err := queue.AcquireLock(ctx, j.rdb, j.cfg.LockKey, j.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, queue.ErrLockHeld) {
			log.WithField("lock", j.cfg.LockKey).Debug("janitor lease held elsewhere, skipping run")
			return 0, nil
		}
		return 0, err
	}
	defer func() {
		if ok, err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Error("failed to release janitor lease")
		} else if !ok {
			log.Warn("janitor lease expired before release")
		}
	}()

	cutoff := j.now().UTC().Add(-j.cfg.MaxAge)
	n, err := j.userRepo.DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	j.metrics.Purged(n)
	if n > 0 {
		log.WithFields(log.Fields{"purged": n, "cutoff": cutoff}).Info("purged unverified accounts")
	}
	return n, nil
}

// Start schedules RunOnce and blocks until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(j.cfg.Schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			log.WithError(err).Error("janitor run failed")
		}
	}); err != nil {
		return err
	}

	c.Start()
	log.WithField("schedule", j.cfg.Schedule).Info("janitor started")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("janitor stopped")
	return nil
}
