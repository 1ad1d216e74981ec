package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_TryTake(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(5, 1, clock.Now)

	assert.True(t, tb.TryTake())
	assert.False(t, tb.TryTake())

	clock.Advance(100 * time.Millisecond)
	assert.False(t, tb.TryTake())

	clock.Advance(100 * time.Millisecond)
	assert.True(t, tb.TryTake())
}

func TestTokenBucket_NeverExceedsRateInAnyWindow(t *testing.T) {
	const rate = 5
	clock := newFakeClock()
	start := clock.Now()
	tb := NewTokenBucket(rate, 1, clock.Now)

	var takes []time.Time
	for clock.Now().Sub(start) < 3*time.Second {
		if tb.TryTake() {
			takes = append(takes, clock.Now())
		}
		clock.Advance(time.Millisecond)
	}

	require.GreaterOrEqual(t, len(takes), 3*rate-1)
	for i, from := range takes {
		n := 0
		for _, at := range takes[i:] {
			if at.Sub(from) < time.Second {
				n++
			}
		}
		assert.LessOrEqual(t, n, rate, "window starting at %v", from.Sub(start))
	}
}

func TestTokenBucket_CapacityAllowsBurst(t *testing.T) {
	clock := newFakeClock()
	tb := NewTokenBucket(1, 3, clock.Now)

	assert.True(t, tb.TryTake())
	assert.True(t, tb.TryTake())
	assert.True(t, tb.TryTake())
	assert.False(t, tb.TryTake())
	assert.InDelta(t, 0, tb.Remaining(), 0.001)
}

func TestTokenBucket_ZeroRateIsUnlimited(t *testing.T) {
	tb := NewTokenBucket(0, 1, nil)
	for i := 0; i < 100; i++ {
		require.True(t, tb.TryTake())
	}
	require.NoError(t, tb.Wait(context.Background()))
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	tb := NewTokenBucket(0.001, 1, nil)
	require.True(t, tb.TryTake())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestTokenBucket_WaitPaces(t *testing.T) {
	tb := NewTokenBucket(50, 1, nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, tb.Wait(ctx))
	}
	// first take is immediate, the next three are 20ms apart
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}
