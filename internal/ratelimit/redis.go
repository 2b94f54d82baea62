package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript applies the fixed-window state machine atomically per key.
// Times are unix milliseconds. Returns {mutated, count, window_start_ms}.
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local count = tonumber(redis.call('HGET', KEYS[1], 'count'))
local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
if not start or now - start >= window then
  redis.call('HSET', KEYS[1], 'count', 1, 'start', now)
  redis.call('PEXPIRE', KEYS[1], window)
  return {1, 1, now}
end
if count >= max then
  return {0, count, start}
end
count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {1, count, start}
`)

// RedisStore keeps rate windows in Redis. Preferred when Redis is
// configured: the Lua script makes check-and-increment atomic across
// instances.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "rl:"}
}

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Decision, error) {
	// Keep this fast; do not let Redis stalls block the request path.
	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()

	res, err := hitScript.Run(ctx, s.rdb, []string{s.prefix + key},
		now.UnixMilli(), window.Milliseconds(), max).Result()
	if err != nil {
		return Decision{}, err
	}

	arr, ok := res.([]any)
	if !ok || len(arr) < 3 {
		return Decision{}, nil
	}
	mutated := intAt(arr, 0) == 1
	count := int(intAt(arr, 1))
	start := time.UnixMilli(intAt(arr, 2))
	return decide(count, start, now, window, max, mutated), nil
}

func intAt(arr []any, i int) int64 {
	v, _ := arr[i].(int64)
	return v
}
