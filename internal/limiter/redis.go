package limiter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the sorted set to the window, then admits the
// request when there is room. Returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
if count >= max then
	local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
	return {0, count, tonumber(oldest[2])}
end
redis.call("ZADD", key, now, ARGV[4])
redis.call("PEXPIRE", key, window)
return {1, count + 1, 0}
`)

// RedisLimiter shares window state across processes.
type RedisLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	window    time.Duration
	max       int
}

func NewRedisLimiter(client redis.UniversalClient, keyPrefix string, max int, window time.Duration) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "storesync"
	}
	if max <= 0 {
		max = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix + ":ratelimit:",
		window:    window,
		max:       max,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	nowMs := time.Now().UnixMilli()
	windowMs := r.window.Milliseconds()
	res, err := slidingWindowScript.Run(ctx, r.client,
		[]string{r.keyPrefix + key},
		nowMs, windowMs, r.max, strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit %s: unexpected reply %v", key, res)
	}
	if res[0] == 1 {
		return Decision{Allowed: true, Remaining: r.max - int(res[1])}, nil
	}
	retry := time.Duration(res[2]+windowMs-nowMs) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	return Decision{Allowed: false, RetryAfter: retry}, nil
}
