package blob

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "content.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "problems/web-1/description", ProblemKey("web-1", Description))
	assert.Equal(t, "contests/c1/p1/hints", ContestProblemKey("c1", "p1", Hints))
	assert.Equal(t, "contests/c1/description", ContestKey("c1", Description))
	assert.Equal(t, "announcements/7/body", AnnouncementKey(7))
}

func TestBoltStoreReadMissingIsEmpty(t *testing.T) {
	s := newBoltStore(t)
	text, err := s.ReadText(context.Background(), "problems/nope/description")
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestBoltStoreRoundTripAndDeleteTree(t *testing.T) {
	s := newBoltStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteText(ctx, ProblemKey("p1", Description), "desc"))
	require.NoError(t, s.WriteText(ctx, ProblemKey("p1", Hints), "hint"))
	require.NoError(t, s.WriteText(ctx, ProblemKey("p10", Description), "other"))

	text, err := s.ReadText(ctx, ProblemKey("p1", Description))
	require.NoError(t, err)
	assert.Equal(t, "desc", text)

	require.NoError(t, s.DeleteTree(ctx, ProblemDir("p1")))

	text, err = s.ReadText(ctx, ProblemKey("p1", Hints))
	require.NoError(t, err)
	assert.Empty(t, text)

	text, err = s.ReadText(ctx, ProblemKey("p10", Description))
	require.NoError(t, err)
	assert.Equal(t, "other", text, "sibling with shared prefix must survive")
}

type countingStore struct {
	Store
	reads    int
	failNext bool
}

func (c *countingStore) ReadText(ctx context.Context, key string) (string, error) {
	c.reads++
	return c.Store.ReadText(ctx, key)
}

func (c *countingStore) WriteText(ctx context.Context, key, text string) error {
	if c.failNext {
		c.failNext = false
		return errors.New("backend down")
	}
	return c.Store.WriteText(ctx, key, text)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	backend := &countingStore{Store: newBoltStore(t)}
	s := NewCachedStore(backend, 32, time.Minute)

	require.NoError(t, s.WriteText(ctx, "contests/c1/p1/description", "v1"))

	for i := 0; i < 3; i++ {
		text, err := s.ReadText(ctx, "contests/c1/p1/description")
		require.NoError(t, err)
		assert.Equal(t, "v1", text)
	}
	assert.Equal(t, 0, backend.reads, "writes populate the cache")

	backend.failNext = true
	assert.Error(t, s.WriteText(ctx, "contests/c1/p1/description", "v2"))
	text, err := s.ReadText(ctx, "contests/c1/p1/description")
	require.NoError(t, err)
	assert.Equal(t, "v1", text)
	assert.Equal(t, 1, backend.reads, "failed write evicts the cached value")

	require.NoError(t, s.DeleteTree(ctx, ContestDir("c1")))
	text, err = s.ReadText(ctx, "contests/c1/p1/description")
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 2, backend.reads)
}
