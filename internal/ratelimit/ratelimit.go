// Package ratelimit implements the per-IP fixed-window request governor.
//
// Counters live in Redis under "<prefix>:<ip>" with a TTL equal to the
// window. The check and the increment run inside one Lua script so
// concurrent requests from the same address cannot both slip under the cap.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/secissues/secissues-go/internal/metrics"
)

// ErrStoreUnavailable is returned when the counter store cannot be reached.
// It is never returned for a request that was merely over its budget.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// KEYS[1] counter key. ARGV[1] cap, ARGV[2] window in ms.
// Returns {allowed, count, pttl}.
const fixedWindowLua = `
local key = KEYS[1]
local cap = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local count = tonumber(redis.call("GET", key) or "0")
if count >= cap then
  local ttl = redis.call("PTTL", key)
  if ttl < 0 then
    redis.call("PEXPIRE", key, window)
    ttl = window
  end
  return {0, count, ttl}
end

count = redis.call("INCR", key)
local ttl = redis.call("PTTL", key)
if ttl < 0 then
  redis.call("PEXPIRE", key, window)
  ttl = window
end
return {1, count, ttl}
`

const defaultTimeout = 500 * time.Millisecond

// Options configures a Governor.
type Options struct {
	// Prefix namespaces the counter keys, e.g. "api" or "public".
	Prefix string
	// Limit is the number of requests admitted per IP per window.
	Limit int
	// Window is the lifetime of a counter after the first admitted request.
	Window time.Duration
	// Timeout bounds each round trip to Redis.
	Timeout time.Duration
}

// Decision describes the counter after an admit call.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a limited client should wait before the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Governor admits or rejects requests per client IP.
type Governor struct {
	rdb    redis.Scripter
	logger *slog.Logger
	opts   Options
	script *redis.Script
	now    func() time.Time
}

// NewGovernor creates a Governor backed by rdb.
func NewGovernor(rdb redis.Scripter, logger *slog.Logger, opts Options) (*Governor, error) {
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("ratelimit: limit must be positive, got %d", opts.Limit)
	}
	if opts.Window < time.Millisecond {
		return nil, fmt.Errorf("ratelimit: window too small: %v", opts.Window)
	}
	if opts.Prefix == "" {
		opts.Prefix = "default"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{
		rdb:    rdb,
		logger: logger,
		opts:   opts,
		script: redis.NewScript(fixedWindowLua),
		now:    time.Now,
	}, nil
}

// Scope returns the key prefix this governor counts under.
func (g *Governor) Scope() string {
	return g.opts.Prefix
}

// Admit counts one request from ip. Once the cap is reached further requests
// are rejected without growing the counter until the window expires.
func (g *Governor) Admit(ctx context.Context, ip string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	start := time.Now()
	res, err := g.script.Run(ctx, g.rdb, []string{g.key(ip)}, g.opts.Limit, g.opts.Window.Milliseconds()).Result()
	metrics.RateLimitLatency.WithLabelValues(g.opts.Prefix).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RateLimitDecisions.WithLabelValues(g.opts.Prefix, "error").Inc()
		g.logger.Error("rate limit admit failed", slog.String("scope", g.opts.Prefix), slog.Any("error", err))
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 3 {
		metrics.RateLimitDecisions.WithLabelValues(g.opts.Prefix, "error").Inc()
		return Decision{}, fmt.Errorf("%w: unexpected script result %v", ErrStoreUnavailable, res)
	}

	count := int(toInt64(values[1]))
	d := Decision{
		Allowed:   toInt64(values[0]) == 1,
		Count:     count,
		Limit:     g.opts.Limit,
		Remaining: max(g.opts.Limit-count, 0),
		ResetAt:   g.now().Add(time.Duration(toInt64(values[2])) * time.Millisecond),
	}

	outcome := "allowed"
	if !d.Allowed {
		outcome = "limited"
	}
	metrics.RateLimitDecisions.WithLabelValues(g.opts.Prefix, outcome).Inc()

	return d, nil
}

func (g *Governor) key(ip string) string {
	return "secissues:ratelimit:" + g.opts.Prefix + ":" + ip
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
