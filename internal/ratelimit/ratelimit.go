// Package ratelimit bounds how many API requests one caller may make in a
// sliding window.
package ratelimit

import (
	"context"
	"time"
)

// Result is the decision for one request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
}

// RetryAfter is how long a refused caller should wait, never below a second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d.Round(time.Second)
}

// Store counts requests per key.
type Store interface {
	// Allow records one request for key and reports whether it fits in
	// limit requests per window. Refused requests are not recorded.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Policy is the limit applied to every caller. A zero Limit disables
// limiting.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) Enabled() bool {
	return p.Limit > 0 && p.Window > 0
}
