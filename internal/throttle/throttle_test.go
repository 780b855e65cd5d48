package throttle

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu       sync.Mutex
	now      time.Time
	slept    []time.Duration
	failNext bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		c.failNext = false
		return context.Canceled
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestThrottle(c *fakeClock) *Throttle {
	return New(time.Second, WithClock(c.Now), WithSleepFunc(c.Sleep))
}

func TestAcquire_FirstCallIsImmediate(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(clock)

	granted, err := th.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), granted)
	assert.Empty(t, clock.slept)
}

func TestAcquire_SpacesBackToBackCalls(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(clock)
	start := clock.Now()

	first, err := th.Acquire(context.Background())
	require.NoError(t, err)
	second, err := th.Acquire(context.Background())
	require.NoError(t, err)
	third, err := th.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, start, first)
	assert.GreaterOrEqual(t, second.Sub(first), time.Second)
	assert.GreaterOrEqual(t, third.Sub(second), time.Second)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.slept)
}

func TestAcquire_NoWaitAfterIdleInterval(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(clock)

	_, err := th.Acquire(context.Background())
	require.NoError(t, err)

	clock.mu.Lock()
	clock.now = clock.now.Add(5 * time.Second)
	clock.mu.Unlock()

	_, err = th.Acquire(context.Background())
	require.NoError(t, err)
	assert.Empty(t, clock.slept)
}

func TestAcquire_CancelledWaitReleasesSlot(t *testing.T) {
	clock := newFakeClock()
	th := newTestThrottle(clock)

	_, err := th.Acquire(context.Background())
	require.NoError(t, err)

	clock.failNext = true
	_, err = th.Acquire(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	// The abandoned reservation must not push the next caller out by two
	// intervals.
	_, err = th.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, clock.slept)
}

func TestAcquire_DoneContext(t *testing.T) {
	th := New(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := th.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquire_ConcurrentCallersAreSpaced(t *testing.T) {
	const interval = 20 * time.Millisecond
	th := New(interval)

	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			granted, err := th.Acquire(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			grants = append(grants, granted)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, grants, 4)
	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })
	for i := 1; i < len(grants); i++ {
		assert.GreaterOrEqual(t, grants[i].Sub(grants[i-1]), interval-time.Millisecond)
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultInterval, New(0).Interval())
	assert.Equal(t, 3*time.Second, New(3*time.Second).Interval())
}

func TestAcquire_SpacingHoldsForFractionalOffsets(t *testing.T) {
	for ms := 1; ms < 1000; ms++ {
		clock := newFakeClock()
		th := newTestThrottle(clock)

		first, err := th.Acquire(context.Background())
		require.NoError(t, err)

		clock.mu.Lock()
		clock.now = clock.now.Add(time.Duration(ms)*time.Millisecond + 123457*time.Nanosecond)
		clock.mu.Unlock()

		second, err := th.Acquire(context.Background())
		require.NoError(t, err)
		if !assert.GreaterOrEqual(t, second.Sub(first), time.Second, "offset %dms", ms) {
			return
		}
	}
}
