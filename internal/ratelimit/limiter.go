// Package ratelimit implements fixed-window request quotas keyed by caller.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the state of a caller's window after counting a request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RetryAfter is how long the caller must wait for the window to reset.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if d := r.Reset.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter counts one request for key against limit per window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// windowStart aligns now to the start of its fixed window.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

func result(count int64, limit int, reset time.Time) Result {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
	}
}
