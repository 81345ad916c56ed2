package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Tokens are tracked in thousandths so the integer script reply keeps
// fractional refills.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = (tonumber(t[1]) * 1000) + math.floor(tonumber(t[2]) / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil or ts == nil then
  tokens = burst
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens * 1000), now}
`

var (
	ErrBucketNotConfigured = errors.New("rate_limiter_not_configured")
	ErrBucketKeyEmpty      = errors.New("rate_limiter_key_empty")
	ErrBucketInvalidLimit  = errors.New("rate_limiter_invalid_limit")
)

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from key, refilling at rate tokens per second up to
// burst.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	if t == nil || t.client == nil {
		return nil, ErrBucketNotConfigured
	}
	if key == "" {
		return nil, ErrBucketKeyEmpty
	}
	if rate <= 0 || burst <= 0 {
		return nil, ErrBucketInvalidLimit
	}

	res, err := t.script.Run(
		ctx,
		t.client,
		[]string{key},
		strconv.FormatFloat(rate, 'f', -1, 64),
		burst,
		bucketTTL(rate, burst).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 3 {
		return nil, fmt.Errorf("token bucket: unexpected reply of %d values", len(res))
	}

	allowed := res[0] == 1
	remaining := float64(res[1]) / 1000
	out := &Result{
		Allowed:   allowed,
		Limit:     burst,
		Remaining: int(remaining),
	}
	if !allowed {
		out.RetryAfter = time.Duration((1 - remaining) / rate * float64(time.Second))
	}
	return out, nil
}

// bucketTTL keeps an idle bucket around for two full refills.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(float64(burst) / rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
