package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps every failure to reach the counter store.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Remaining int
	// Reset is when the oldest request in the window expires.
	Reset time.Time
}

// Limiter admits or rejects one request for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// slidingWindowScript keeps one sorted-set member per admitted request,
// scored by its timestamp in milliseconds.
//
// KEYS[1] counter key
// ARGV[1] now, ARGV[2] oldest score still outside the window,
// ARGV[3] limit, ARGV[4] member, ARGV[5] window in ms
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
local count = redis.call('ZCARD', key)
local allowed = 0
if count < tonumber(ARGV[3]) then
  redis.call('ZADD', key, ARGV[1], ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, ARGV[5])
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local score = ''
if oldest[2] then score = oldest[2] end
return {allowed, count, score}
`)

// SlidingWindow allows at most Max requests per key in any trailing Window.
type SlidingWindow struct {
	client redis.Scripter
	prefix string
	max    int
	window time.Duration
	now    func() time.Time
}

func NewSlidingWindow(client redis.Scripter, max int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		client: client,
		prefix: "ratelimit:",
		max:    max,
		window: window,
		now:    time.Now,
	}
}

func (l *SlidingWindow) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	nowMs := now.UnixMilli()
	windowMs := l.window.Milliseconds()

	raw, err := slidingWindowScript.Run(ctx, l.client, []string{l.prefix + key},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(nowMs-windowMs, 10),
		strconv.Itoa(l.max),
		strconv.FormatInt(nowMs, 10)+"-"+uuid.NewString(),
		strconv.FormatInt(windowMs, 10),
	).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, raw)
	}

	allowed, _ := raw[0].(int64)
	count, _ := raw[1].(int64)

	reset := now.Add(l.window)
	if s, ok := raw[2].(string); ok && s != "" {
		if oldest, err := strconv.ParseFloat(s, 64); err == nil {
			reset = time.UnixMilli(int64(oldest)).Add(l.window)
		}
	}

	remaining := l.max - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: allowed == 1, Remaining: remaining, Reset: reset}, nil
}

// NewRedisClient connects to the counter store. A non-empty token replaces
// any password carried in the URL.
func NewRedisClient(url, token string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rate limit store URL: %w", err)
	}
	if token != "" {
		opt.Password = token
	}
	return redis.NewClient(opt), nil
}
