package service

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ctf_zone/internal/domain/model"
	"ctf_zone/internal/platform/blob"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func newBlobStore(t *testing.T) *blob.BoltStore {
	t.Helper()
	store, err := blob.NewBoltStore(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// failingStore fails writes to one key and delegates everything else.
type failingStore struct {
	blob.Store
	failKey string
}

func (f *failingStore) WriteText(ctx context.Context, key, text string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.Store.WriteText(ctx, key, text)
}

var (
	contestColumns        = []string{"id", "name", "start_time", "end_time", "scoreboard_visible"}
	contestProblemColumns = []string{"contest_id", "problem_id", "name", "point_value", "category", "flag", "draft"}
	problemColumns        = []string{"id", "name", "point_value", "category", "flag", "draft"}
	userColumnNames       = []string{"id", "username", "email", "password_hash", "admin", "banned", "verified", "join_date"}
)

func contestRow(id, name string, start, end time.Time, visible bool) *sqlmock.Rows {
	return sqlmock.NewRows(contestColumns).AddRow(id, name, start, end, visible)
}

func userRow(u *model.User) *sqlmock.Rows {
	return sqlmock.NewRows(userColumnNames).AddRow(
		u.ID, u.Username, u.Email, u.HashedPassword, u.Role == model.RoleAdmin, u.Banned, u.Verified, u.JoinDate,
	)
}

func regularUser(id int64, name string) *model.User {
	return &model.User{ID: id, Username: name, Email: name + "@example.com", Role: model.RoleUser, Verified: true, JoinDate: testNow}
}

func adminUser(id int64, name string) *model.User {
	u := regularUser(id, name)
	u.Role = model.RoleAdmin
	return u
}
