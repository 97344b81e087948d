package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
tokens = math.min(burst, tokens + (delta * rate) / 1000.0)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", key, "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return allowed
`

// Limiter is a per-key token bucket kept in Redis so every API instance
// shares the same budget.
type Limiter struct {
	rdb    *redis.Client
	prefix string
	rate   float64
	burst  float64
	now    func() time.Time
	script *redis.Script
}

// New returns nil when limiting is disabled. A nil *Limiter allows everything.
func New(rdb *redis.Client, prefix string, rate, burst float64) *Limiter {
	if rdb == nil || rate <= 0 || burst <= 0 {
		return nil
	}
	return &Limiter{
		rdb:    rdb,
		prefix: prefix,
		rate:   rate,
		burst:  burst,
		now:    time.Now,
		script: redis.NewScript(tokenBucketLua),
	}
}

// Allow takes one token from the bucket of key.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	res, err := l.script.Run(ctx, l.rdb, []string{l.prefix + key},
		strconv.FormatFloat(l.rate, 'f', -1, 64),
		strconv.FormatFloat(l.burst, 'f', -1, 64),
		l.now().UnixMilli(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit eval: %w", err)
	}
	return res == 1, nil
}
