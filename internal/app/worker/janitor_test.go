package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"ctf_zone/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var janitorNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newJanitorFixture(t *testing.T) (*Janitor, sqlmock.Sqlmock, func(string) bool) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	j := NewJanitor(rdb, repository.NewPgUserRepository(db), JanitorConfig{
		Schedule: "@every 1m",
		LockKey:  "ctf:janitor:lock",
		LockTTL:  time.Minute,
		MaxAge:   30 * time.Minute,
	}, nil)
	j.now = func() time.Time { return janitorNow }
	return j, mock, mr.Exists
}

func TestJanitor_PurgesStaleRegistrations(t *testing.T) {
	j, mock, exists := newJanitorFixture(t)

	mock.ExpectExec("DELETE FROM users WHERE verified = FALSE").
		WithArgs(janitorNow.Add(-30 * time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.False(t, exists("ctf:janitor:lock"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJanitor_SkipsWhenLeaseHeld(t *testing.T) {
	j, mock, _ := newJanitorFixture(t)
	require.NoError(t, j.rdb.Set(context.Background(), "ctf:janitor:lock", "other-replica", time.Minute).Err())

	n, err := j.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJanitor_DatabaseErrorReleasesLease(t *testing.T) {
	j, mock, exists := newJanitorFixture(t)

	mock.ExpectExec("DELETE FROM users").WillReturnError(errors.New("connection reset"))

	_, err := j.RunOnce(context.Background())
	require.Error(t, err)
	assert.False(t, exists("ctf:janitor:lock"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJanitor_InvalidSchedule(t *testing.T) {
	j, _, _ := newJanitorFixture(t)
	j.cfg.Schedule = "not a schedule"

	assert.Error(t, j.Start(context.Background()))
}
