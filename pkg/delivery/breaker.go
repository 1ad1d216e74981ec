package delivery

import (
	"fmt"
	"sync"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

// BreakerState is the circuit breaker state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	// Threshold consecutive failures open the circuit.
	Threshold int

	// HalfOpenTimeout is how long the circuit stays open before one trial.
	HalfOpenTimeout time.Duration

	// SuccessThreshold consecutive trial successes close the circuit.
	SuccessThreshold int
}

// DefaultBreakerConfig returns 5 failures, 60s, 3 successes.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Threshold:        config.DefaultBreakerThreshold,
		HalfOpenTimeout:  config.DefaultBreakerHalfOpenTimeout,
		SuccessThreshold: config.DefaultBreakerSuccessThreshold,
	}
}

// BreakerSnapshot is a point-in-time view of the breaker.
type BreakerSnapshot struct {
	State           BreakerState  `json:"state"`
	Failures        int           `json:"failures"`
	Successes       int           `json:"successes"`
	LastFailureTime time.Time     `json:"last_failure_time,omitempty"`
	OpenedAt        time.Time     `json:"opened_at,omitempty"`
	IsOpen          bool          `json:"is_open"`
	Threshold       int           `json:"threshold"`
	HalfOpenTimeout time.Duration `json:"half_open_timeout"`
}

// CircuitBreaker guards the gateway. While open every call fails with
// KindCircuitOpen; once the timeout elapses exactly one trial is let through
// at a time until SuccessThreshold trials succeed or one fails.
type CircuitBreaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	openedAt    time.Time
	trial       bool

	onChange func(from, to BreakerState)
}

// NewCircuitBreaker creates a closed breaker. now may be nil.
func NewCircuitBreaker(cfg BreakerConfig, now func() time.Time) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = config.DefaultBreakerThreshold
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = config.DefaultBreakerHalfOpenTimeout
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = config.DefaultBreakerSuccessThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &CircuitBreaker{cfg: cfg, now: now, state: BreakerClosed}
}

// OnStateChange registers a callback invoked (under no lock) on transitions.
func (b *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Allow reserves permission for one gateway call.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()

	switch b.state {
	case BreakerClosed:
		b.mu.Unlock()
		return nil

	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.HalfOpenTimeout {
			b.mu.Unlock()
			return b.openError()
		}
		b.trial = true
		b.successes = 0
		notify := b.transitionLocked(BreakerHalfOpen)
		b.mu.Unlock()
		notify()
		return nil

	default: // half-open
		if b.trial {
			b.mu.Unlock()
			return b.openError()
		}
		b.trial = true
		b.mu.Unlock()
		return nil
	}
}

// IsOpen reports whether calls are currently refused outright.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == BreakerOpen && b.now().Sub(b.openedAt) < b.cfg.HalfOpenTimeout
}

// RecordSuccess reports a call the gateway answered.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	notify := func() {}

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.trial = false
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.failures = 0
			b.successes = 0
			notify = b.transitionLocked(BreakerClosed)
		}
	}

	b.mu.Unlock()
	notify()
}

// RecordFailure reports a call that failed for gateway-health reasons.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	notify := func() {}
	now := b.now()
	b.lastFailure = now

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.Threshold {
			b.openedAt = now
			notify = b.transitionLocked(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.trial = false
		b.successes = 0
		b.failures++
		b.openedAt = now
		notify = b.transitionLocked(BreakerOpen)
	}

	b.mu.Unlock()
	notify()
}

// State returns the current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the breaker's counters.
func (b *CircuitBreaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerSnapshot{
		State:           b.state,
		Failures:        b.failures,
		Successes:       b.successes,
		LastFailureTime: b.lastFailure,
		OpenedAt:        b.openedAt,
		IsOpen:          b.state == BreakerOpen,
		Threshold:       b.cfg.Threshold,
		HalfOpenTimeout: b.cfg.HalfOpenTimeout,
	}
}

func (b *CircuitBreaker) openError() error {
	return &Error{
		Kind:    KindCircuitOpen,
		Message: fmt.Sprintf("gateway circuit open after %d consecutive failures", b.cfg.Threshold),
	}
}

// transitionLocked changes state and returns the callback to run after
// unlocking.
func (b *CircuitBreaker) transitionLocked(to BreakerState) func() {
	from := b.state
	b.state = to
	fn := b.onChange
	if fn == nil || from == to {
		return func() {}
	}
	return func() { fn(from, to) }
}
