package blob

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedStore serves repeated reads from an expiring LRU in front of a
// slower backend. Writes go through and refresh the cached value.
type CachedStore struct {
	next  Store
	cache *lru.LRU[string, string]
}

func NewCachedStore(next Store, size int, ttl time.Duration) *CachedStore {
	if size < 16 {
		size = 16
	}
	return &CachedStore{
		next:  next,
		cache: lru.NewLRU[string, string](size, nil, ttl),
	}
}

func (s *CachedStore) ReadText(ctx context.Context, key string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	v, err := s.next.ReadText(ctx, key)
	if err != nil {
		return "", err
	}
	s.cache.Add(key, v)
	return v, nil
}

func (s *CachedStore) WriteText(ctx context.Context, key, text string) error {
	if err := s.next.WriteText(ctx, key, text); err != nil {
		s.cache.Remove(key)
		return err
	}
	s.cache.Add(key, text)
	return nil
}

func (s *CachedStore) DeleteTree(ctx context.Context, prefix string) error {
	for _, k := range s.cache.Keys() {
		if inTree(k, prefix) {
			s.cache.Remove(k)
		}
	}
	return s.next.DeleteTree(ctx, prefix)
}
