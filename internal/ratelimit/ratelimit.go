// Package ratelimit caps how often a single user can trigger actuator calls.
// Every allowed request costs real telephony money and holds the line, so
// the cap is enforced in Redis where it survives restarts and is shared by
// all processes.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = limit (int)
-- ARGV[2] = window_ms (int)
--
-- Returns:
--  1 if allowed
--  0 if rejected (limit reached)
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  -- Ensure TTL exists even if key already existed without TTL
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
  end
end

if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

// Limiter is a fixed-window per-user counter. Rejected attempts still count
// toward the window; hammering the bot extends nothing but adds no calls.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
}

func NewLimiter(rdb *redis.Client, limit int, window time.Duration) (*Limiter, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be > 0")
	}
	return &Limiter{rdb: rdb, limit: limit, window: window}, nil
}

// Allow reports whether the user may place another actuator call now.
func (l *Limiter) Allow(ctx context.Context, userID int64) (bool, error) {
	key := fmt.Sprintf("ratelimit:access:%d", userID)
	res, err := fixedWindowScript.Run(ctx, l.rdb, []string{key}, l.limit, l.window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
