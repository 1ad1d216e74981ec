package delivery

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

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
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

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(DefaultBreakerConfig(), clock.Now)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, BreakerClosed, b.State())

	require.NoError(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.True(t, b.IsOpen())

	for i := 0; i < 10; i++ {
		err := b.Allow()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCircuitOpen)
	}

	snap := b.Snapshot()
	assert.Equal(t, 5, snap.Failures)
	assert.True(t, snap.IsOpen)
	assert.Equal(t, clock.Now(), snap.LastFailureTime)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewCircuitBreaker(DefaultBreakerConfig(), newFakeClock().Now)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()
	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, BreakerClosed, b.State())
}

func TestCircuitBreaker_HalfOpenAllowsOneTrial(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(DefaultBreakerConfig(), clock.Now)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	clock.Advance(59 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	clock.Advance(time.Second)
	assert.False(t, b.IsOpen())
	require.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())

	// the trial is still in flight
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	b.RecordSuccess()
	require.NoError(t, b.Allow())
}

func TestCircuitBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(DefaultBreakerConfig(), clock.Now)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(time.Minute)

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.RecordSuccess()
		assert.Equal(t, BreakerHalfOpen, b.State())
	}

	require.NoError(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, BreakerClosed, b.State())

	snap := b.Snapshot()
	assert.Zero(t, snap.Failures)
	assert.Zero(t, snap.Successes)
}

func TestCircuitBreaker_TrialFailureReopens(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(DefaultBreakerConfig(), clock.Now)
	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	clock.Advance(time.Minute)

	require.NoError(t, b.Allow())
	b.RecordSuccess()
	require.NoError(t, b.Allow())
	b.RecordFailure()

	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// a fresh timeout starts from the trial failure
	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
	clock.Advance(30 * time.Second)
	assert.NoError(t, b.Allow())
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	clock := newFakeClock()
	b := NewCircuitBreaker(BreakerConfig{Threshold: 1, HalfOpenTimeout: time.Second, SuccessThreshold: 1}, clock.Now)

	var transitions []string
	b.OnStateChange(func(from, to BreakerState) {
		transitions = append(transitions, string(from)+">"+string(to))
	})

	b.RecordFailure()
	clock.Advance(time.Second)
	require.NoError(t, b.Allow())
	b.RecordSuccess()

	assert.Equal(t, []string{"closed>open", "open>half_open", "half_open>closed"}, transitions)
}
