package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces bucket hashes in Redis
const DefaultKeyPrefix = "ratelimit:"

// tokenBucketScript applies the same whole-interval refill as bucket.take
// atomically on a hash {tokens, last}. Times are unix milliseconds supplied
// by the caller so every instance shares one clock source per request.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = capacity
  last = now
end

local elapsed = now - last
if elapsed > 0 then
  local refill = math.floor(elapsed / interval) * capacity
  tokens = math.min(capacity, tokens + refill)
  last = now
end

local allowed = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last', last)
redis.call('PEXPIRE', KEYS[1], interval)
return {allowed, tokens}
`)

// RedisLimiter keeps buckets in Redis so that every instance behind a load
// balancer shares them. An idle bucket expires after one interval, at which
// point it would have been refilled to capacity anyway.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	cfg    Config
}

// NewRedisLimiter creates a limiter backed by client
func NewRedisLimiter(client redis.Scripter, prefix string, cfg Config) (*RedisLimiter, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisLimiter{client: client, prefix: prefix, cfg: cfg}, nil
}

// Admit consumes a token for key if one is available
func (l *RedisLimiter) Admit(ctx context.Context, key string) (Decision, error) {
	res, err := tokenBucketScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		l.cfg.Capacity,
		l.cfg.RefillInterval.Milliseconds(),
		l.cfg.Now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: l.cfg.RefillInterval,
	}, nil
}
