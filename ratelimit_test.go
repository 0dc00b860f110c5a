package nova

import (
	"context"
	"testing"
	"time"
)

// fakeClock drives a limiter deterministically: waits advance the clock
// instead of sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock, *[]time.Duration) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	waits := &[]time.Duration{}

	r := NewRateLimiter(limit, window)
	r.now = clock.now
	r.wait = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		clock.advance(d)
		return nil
	}
	return r, clock, waits
}

func TestRateLimiterAcquire(t *testing.T) {
	t.Run("under the ceiling nothing blocks", func(t *testing.T) {
		r, _, waits := newTestLimiter(3, 60*time.Second)
		for i := 0; i < 3; i++ {
			if err := r.Acquire(context.Background()); err != nil {
				t.Fatalf("Acquire %d: %v", i, err)
			}
		}
		if len(*waits) != 0 {
			t.Errorf("waited %v, want none", *waits)
		}
		if got := r.Pending(); got != 3 {
			t.Errorf("pending = %d, want 3", got)
		}
	})

	t.Run("at the ceiling the next acquire waits out the oldest stamp", func(t *testing.T) {
		r, clock, waits := newTestLimiter(2, 60*time.Second)

		if err := r.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		clock.advance(10 * time.Second)
		if err := r.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		clock.advance(5 * time.Second)

		// Third request arrives 15s after the first; the window frees up
		// 45s later.
		if err := r.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(*waits) != 1 {
			t.Fatalf("waits = %v, want one wait", *waits)
		}
		if (*waits)[0] != 45*time.Second {
			t.Errorf("waited %v, want 45s", (*waits)[0])
		}
	})

	t.Run("three back-to-back acquires at ceiling two span the full window", func(t *testing.T) {
		r, clock, _ := newTestLimiter(2, 60*time.Second)
		first := clock.now()

		for i := 0; i < 3; i++ {
			if err := r.Acquire(context.Background()); err != nil {
				t.Fatalf("Acquire %d: %v", i, err)
			}
		}

		if elapsed := clock.now().Sub(first); elapsed < 60*time.Second {
			t.Errorf("third admission after %v, want >= 60s from the first", elapsed)
		}
	})

	t.Run("expired stamps free capacity without waiting", func(t *testing.T) {
		r, clock, waits := newTestLimiter(2, 60*time.Second)

		if err := r.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := r.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		clock.advance(61 * time.Second)

		if err := r.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}
		if len(*waits) != 0 {
			t.Errorf("waited %v, want none", *waits)
		}
		if got := r.Pending(); got != 1 {
			t.Errorf("pending = %d, want 1", got)
		}
	})

	t.Run("cancelled context aborts the wait", func(t *testing.T) {
		r := NewRateLimiter(1, 60*time.Second)
		clock := &fakeClock{t: time.Unix(1000, 0)}
		r.now = clock.now

		if err := r.Acquire(context.Background()); err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := r.Acquire(ctx); err == nil {
			t.Fatal("expected context error, got nil")
		}
	})
}

func TestRateLimiterDefaults(t *testing.T) {
	r := NewRateLimiter(0, 0)
	if r.limit != DefaultRateLimit {
		t.Errorf("limit = %d, want %d", r.limit, DefaultRateLimit)
	}
	if r.window != DefaultRateWindow {
		t.Errorf("window = %v, want %v", r.window, DefaultRateWindow)
	}
}
