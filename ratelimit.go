package nova

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default rate limit values: at most 15 backend requests per rolling
// 60 second window.
const (
	DefaultRateLimit  = 15
	DefaultRateWindow = 60 * time.Second
)

// RateLimiter bounds outbound backend requests per rolling time window.
// Acquire must be called immediately before every outbound exchange,
// including every chained follow-up; there is no exemption for internal
// retries.
type RateLimiter struct {
	limit  int
	window time.Duration
	stamps []time.Time

	// Injectable for tests.
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// NewRateLimiter creates a limiter admitting at most limit requests per
// window. Zero values select the defaults.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		wait:   sleepContext,
	}
}

// Acquire admits one request, blocking until the window has room. It
// purges timestamps older than the window, waits for the oldest tracked
// timestamp to fall outside the window when at capacity, and records the
// admitted request's timestamp.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.purge(now)

	if len(r.stamps) >= r.limit {
		waitFor := r.stamps[0].Add(r.window).Sub(now)
		if waitFor > 0 {
			slog.Info("rate limit reached, waiting", "wait", waitFor)
			if err := r.wait(ctx, waitFor); err != nil {
				return err
			}
		}
		r.purge(r.now())
	}

	r.stamps = append(r.stamps, r.now())
	return nil
}

// Pending returns the number of admitted requests still inside the window.
func (r *RateLimiter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purge(r.now())
	return len(r.stamps)
}

// purge drops timestamps older than the window. Caller holds the lock.
func (r *RateLimiter) purge(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.stamps) && !r.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.stamps = append(r.stamps[:0], r.stamps[i:]...)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
