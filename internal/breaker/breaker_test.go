package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock) *Breaker {
	return New(Config{
		FailureThreshold: 6,
		Cooldown:         30 * time.Second,
		Now:              clock.Now,
	})
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 6; i++ {
		require.True(t, b.Allow("clockIn"), "call %d should be admitted", i+1)
		b.Failure("clockIn")
	}

	assert.Equal(t, StateOpen, b.State("clockIn"))
	assert.False(t, b.Allow("clockIn"), "seventh call must short-circuit")
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		require.True(t, b.Allow("clockIn"))
		b.Failure("clockIn")
	}
	b.Success("clockIn")

	// The streak restarts, so five more failures still leave it closed.
	for i := 0; i < 5; i++ {
		require.True(t, b.Allow("clockIn"))
		b.Failure("clockIn")
	}
	assert.Equal(t, StateClosed, b.State("clockIn"))
}

func TestBreakerHalfOpenProbeCloses(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 6; i++ {
		b.Allow("clockIn")
		b.Failure("clockIn")
	}
	require.Equal(t, StateOpen, b.State("clockIn"))
	require.False(t, b.Allow("clockIn"))

	clock.Advance(31 * time.Second)
	require.True(t, b.Allow("clockIn"), "first call after cooldown is the probe")
	assert.Equal(t, StateHalfOpen, b.State("clockIn"))
	assert.False(t, b.Allow("clockIn"), "only one probe admitted at a time")

	b.Success("clockIn")
	assert.Equal(t, StateClosed, b.State("clockIn"))
	assert.True(t, b.Allow("clockIn"))
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 6; i++ {
		b.Allow("clockIn")
		b.Failure("clockIn")
	}
	clock.Advance(31 * time.Second)
	require.True(t, b.Allow("clockIn"))
	b.Failure("clockIn")

	assert.Equal(t, StateOpen, b.State("clockIn"))
	assert.False(t, b.Allow("clockIn"))

	// The cooldown restarts from the reopen.
	clock.Advance(29 * time.Second)
	assert.False(t, b.Allow("clockIn"))
	clock.Advance(2 * time.Second)
	assert.True(t, b.Allow("clockIn"))
}

func TestBreakerReleaseFreesHalfOpenProbe(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 6; i++ {
		b.Allow("clockIn")
		b.Failure("clockIn")
	}
	clock.Advance(31 * time.Second)
	require.True(t, b.Allow("clockIn"), "first call after cooldown is the probe")
	require.False(t, b.Allow("clockIn"), "slot is held while the probe is in flight")

	// The probe resolved without a datastore verdict, e.g. a validation
	// rejection. The slot comes back so the next call can probe.
	b.Release("clockIn")
	assert.Equal(t, StateHalfOpen, b.State("clockIn"))
	require.True(t, b.Allow("clockIn"))

	b.Success("clockIn")
	assert.Equal(t, StateClosed, b.State("clockIn"))
}

func TestBreakerIsolatesOperations(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	b := newTestBreaker(clock)

	for i := 0; i < 6; i++ {
		b.Allow("clockIn")
		b.Failure("clockIn")
	}

	assert.Equal(t, StateOpen, b.State("clockIn"))
	assert.Equal(t, StateClosed, b.State("clockOut"))
	assert.True(t, b.Allow("clockOut"))
}

func TestBreakerStateChangeCallback(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var transitions []State
	b := New(Config{
		FailureThreshold: 2,
		Cooldown:         time.Second,
		Now:              clock.Now,
		OnStateChange: func(op string, s State) {
			transitions = append(transitions, s)
		},
	})

	b.Allow("clockIn")
	b.Failure("clockIn")
	b.Allow("clockIn")
	b.Failure("clockIn")
	clock.Advance(2 * time.Second)
	b.Allow("clockIn")
	b.Success("clockIn")

	require.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}
