package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript atomically counts a call and starts the window on the
// first one.
// KEYS[1] = window key
// ARGV[1] = limit
// ARGV[2] = window in milliseconds
// Returns: [count, allowed (1|0), pttl]
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local count = tonumber(redis.call('GET', key) or '0')
if count >= limit then
    return {count, 0, redis.call('PTTL', key)}
end

count = redis.call('INCR', key)
if count == 1 then
    redis.call('PEXPIRE', key, window)
end
return {count, 1, redis.call('PTTL', key)}
`)

// RedisStore shares windows across gateway instances. If rdb is nil every
// call is allowed.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "ai-gateway:rl:"}
}

func (s *RedisStore) Take(ctx context.Context, key string, limit int64, window time.Duration) (Result, error) {
	now := time.Now()
	if s.rdb == nil {
		return Result{Allowed: true, ResetAt: now.Add(window)}, nil
	}

	res, err := fixedWindowScript.Run(ctx, s.rdb, []string{s.prefix + key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(res) != 3 {
		return Result{}, fmt.Errorf("redis rate limit: unexpected reply %v", res)
	}

	ttl := time.Duration(res[2]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return Result{Allowed: res[1] == 1, Count: res[0], ResetAt: now.Add(ttl)}, nil
}
