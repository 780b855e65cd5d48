// Package throttle spaces calls to a rate-limited upstream.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum gap Nominatim's usage policy asks for.
const DefaultInterval = time.Second

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Throttle grants at most one call per interval. Grants are handed out in
// arrival order; a waiter that gives up releases its slot.
type Throttle struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    SleepFunc
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) {
		t.now = now
	}
}

// WithSleepFunc overrides how the throttle waits. Tests use it with a fake
// clock.
func WithSleepFunc(fn SleepFunc) Option {
	return func(t *Throttle) {
		t.sleep = fn
	}
}

// New returns a throttle that spaces grants by at least interval. A
// non-positive interval falls back to DefaultInterval.
func New(interval time.Duration, opts ...Option) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Throttle{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Interval returns the configured minimum gap.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Acquire blocks until the caller may issue its request and returns the grant
// time. It fails only when ctx is done before the slot arrives.
func (t *Throttle) Acquire(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	t.mu.Lock()
	now := t.now()
	r := t.limiter.ReserveN(now, 1)
	// The limiter converts durations through float tokens and can come up a
	// nanosecond short, so the previous grant is the floor.
	grant := now.Add(r.DelayFrom(now))
	if floor := t.last.Add(t.interval); !t.last.IsZero() && grant.Before(floor) {
		grant = floor
	}
	prev := t.last
	t.last = grant
	t.mu.Unlock()

	delay := grant.Sub(now)
	if delay <= 0 {
		return now, nil
	}

	if err := t.sleep(ctx, delay); err != nil {
		t.mu.Lock()
		r.CancelAt(t.now())
		if t.last.Equal(grant) {
			t.last = prev
		}
		t.mu.Unlock()
		return time.Time{}, err
	}
	return grant, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
