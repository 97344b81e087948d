package security

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSpentStore remembers consumed token ids until the token would
// have expired anyway.
type RedisSpentStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisSpentStore(rdb *redis.Client, prefix string) *RedisSpentStore {
	if prefix == "" {
		prefix = "ctf:token:spent:"
	}
	return &RedisSpentStore{rdb: rdb, prefix: prefix}
}

func (s *RedisSpentStore) Consume(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := s.rdb.SetNX(ctx, s.prefix+id, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("consume token %s: %w", id, err)
	}
	if !ok {
		return ErrTokenSpent
	}
	return nil
}
