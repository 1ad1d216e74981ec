package delivery

import (
	"sort"
	"sync"
	"time"
)

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the callback, reporting whether it was still pending.
	Stop() bool
}

// Scheduler runs delayed callbacks for backoff retries and delayed jobs.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer

	// Stop cancels every pending callback. Later AfterFunc calls are no-ops.
	Stop()
}

// NewScheduler returns a Scheduler backed by time.AfterFunc.
func NewScheduler() Scheduler {
	return &timeScheduler{timers: make(map[*timeTimer]struct{})}
}

type timeScheduler struct {
	mu      sync.Mutex
	timers  map[*timeTimer]struct{}
	stopped bool
}

type timeTimer struct {
	s *timeScheduler
	t *time.Timer
}

func (t *timeTimer) Stop() bool {
	t.s.mu.Lock()
	delete(t.s.timers, t)
	t.s.mu.Unlock()
	if t.t == nil {
		return false
	}
	return t.t.Stop()
}

func (s *timeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	tt := &timeTimer{s: s}
	if s.stopped {
		return tt
	}
	tt.t = time.AfterFunc(d, func() {
		s.mu.Lock()
		_, pending := s.timers[tt]
		delete(s.timers, tt)
		s.mu.Unlock()
		if pending {
			fn()
		}
	})
	s.timers[tt] = struct{}{}
	return tt
}

func (s *timeScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for tt := range s.timers {
		tt.t.Stop()
	}
	s.timers = make(map[*timeTimer]struct{})
}

// ManualScheduler is a Scheduler driven by Advance. It never fires on its own.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	timers  []*manualTimer
	delays  []time.Duration
	stopped bool
}

type manualTimer struct {
	s     *ManualScheduler
	at    time.Time
	seq   int
	fn    func()
	fired bool
	done  bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.done {
		return false
	}
	t.done = true
	return true
}

// NewManualScheduler creates a manual scheduler starting at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// AfterFunc registers fn to run once Advance passes now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &manualTimer{s: s, at: s.now.Add(d), seq: s.seq, fn: fn}
	if s.stopped {
		t.done = true
		return t
	}
	s.timers = append(s.timers, t)
	s.delays = append(s.delays, d)
	return t
}

// Advance moves time forward and runs due callbacks in deadline order on
// the calling goroutine.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	var due []*manualTimer
	var keep []*manualTimer
	for _, t := range s.timers {
		switch {
		case t.done:
		case !t.at.After(s.now):
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	s.timers = keep
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	for _, t := range due {
		t.fn()
	}
}

// Now returns the scheduler's current time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of callbacks waiting to fire.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// Delays returns every delay passed to AfterFunc, in call order.
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// Stop cancels all pending callbacks.
func (s *ManualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for _, t := range s.timers {
		t.done = true
	}
	s.timers = nil
}
