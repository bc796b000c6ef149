// Package ratelimit implements the tiered sliding-window rate limiter backed
// by Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrUnknownTier = errors.New("UNKNOWN_RATE_LIMIT_TIER")

// Tier is one endpoint class with its own budget.
type Tier struct {
	Name   string
	Limit  int64
	Window time.Duration
}

// Result is the outcome of one admission decision.
type Result struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	Reset      time.Time
	RetryAfter time.Duration
	// Degraded is set when the decision was made without the counter store.
	Degraded bool
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (r Result) RetryAfterSeconds() int64 {
	if r.RetryAfter <= 0 {
		return 0
	}
	return int64((r.RetryAfter + time.Second - 1) / time.Second)
}

// Limiter decides whether identity may make one more request.
type Limiter interface {
	Allow(ctx context.Context, identity string) (Result, error)
}

// slidingWindowScript keeps one sorted set per identity with a member per
// admitted request, scored by its timestamp in milliseconds.
// Returns {allowed, count, resetMillis}.
var slidingWindowScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// SlidingWindowLimiter counts requests over a rolling window.
type SlidingWindowLimiter struct {
	client redis.UniversalClient
	tier   Tier
	now    func() time.Time
}

func NewSlidingWindowLimiter(client redis.UniversalClient, tier Tier) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{client: client, tier: tier, now: time.Now}
}

func (l *SlidingWindowLimiter) Tier() Tier { return l.tier }

func (l *SlidingWindowLimiter) Allow(ctx context.Context, identity string) (Result, error) {
	now := l.now()
	key := fmt.Sprintf("ratelimit:%s:%s", l.tier.Name, identity)

	vals, err := slidingWindowScript.Run(ctx, l.client, []string{key},
		now.UnixMilli(),
		l.tier.Window.Milliseconds(),
		l.tier.Limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("sliding window %s: %w", l.tier.Name, err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("sliding window %s: unexpected reply %v", l.tier.Name, vals)
	}

	allowed, count, reset := vals[0] == 1, vals[1], time.UnixMilli(vals[2])
	res := Result{
		Allowed: allowed,
		Limit:   l.tier.Limit,
		Reset:   reset,
	}
	if allowed {
		res.Remaining = l.tier.Limit - count
		return res, nil
	}

	res.RetryAfter = reset.Sub(now)
	if res.RetryAfter < time.Second {
		res.RetryAfter = time.Second
	}
	return res, nil
}
