package delivery

import (
	"context"
	"sync"
	"time"
)

// TokenBucket paces gateway dispatches. Tokens refill continuously at rate
// per second up to capacity. With capacity 1 no rolling one-second window
// ever sees more than rate dispatches.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	rate     float64
	last     time.Time
	now      func() time.Time
}

// NewTokenBucket creates a full bucket. capacity below 1 is raised to 1.
// now may be nil.
func NewTokenBucket(rate, capacity float64, now func() time.Time) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if now == nil {
		now = time.Now
	}
	return &TokenBucket{
		capacity: capacity,
		tokens:   capacity,
		rate:     rate,
		last:     now(),
		now:      now,
	}
}

// TryTake consumes a token if one is available.
func (tb *TokenBucket) TryTake() bool {
	return tb.reserve() == 0
}

// Wait blocks until a token is consumed or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait := tb.reserve()
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Remaining returns the tokens currently available.
func (tb *TokenBucket) Remaining() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked()
	return tb.tokens
}

// reserve takes a token and returns 0, or returns how long until one is due.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.rate <= 0 {
		return 0
	}

	tb.refillLocked()
	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}

	wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.last)
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed.Seconds() * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.last = now
}
