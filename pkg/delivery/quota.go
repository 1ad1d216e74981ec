package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// QuotaStore is a durable per-day message counter. Reserve must be an atomic
// increment-and-check: it either adds n and returns the new total, or fails
// with KindQuotaExceeded and leaves the counter untouched.
type QuotaStore interface {
	Reserve(ctx context.Context, key string, n, limit int64) (int64, error)
	Release(ctx context.Context, key string, n int64) error
	Used(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// QuotaPruner is implemented by stores that need old counters removed.
type QuotaPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DayKey returns the calendar day of now in loc, e.g. "2026-10-19".
func DayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}

// QuotaKey scopes a day key to a sender.
func QuotaKey(sender, day string) string {
	if sender == "" {
		return day
	}
	return sender + ":" + day
}

// QuotaExceededError builds the error returned when a reservation does not fit.
func QuotaExceededError(key string, used, n, limit int64) *Error {
	return &Error{
		Kind:    KindQuotaExceeded,
		Message: fmt.Sprintf("daily quota %s exhausted: %d used, %d requested, limit %d", key, used, n, limit),
	}
}

// MemoryQuotaStore keeps counters in memory. Close is a no-op so one
// instance can back several queue generations in tests.
type MemoryQuotaStore struct {
	mu      sync.Mutex
	used    map[string]int64
	updated map[string]time.Time
}

var (
	_ QuotaStore  = (*MemoryQuotaStore)(nil)
	_ QuotaPruner = (*MemoryQuotaStore)(nil)
)

// NewMemoryQuotaStore creates an empty store.
func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{
		used:    make(map[string]int64),
		updated: make(map[string]time.Time),
	}
}

func (s *MemoryQuotaStore) Reserve(ctx context.Context, key string, n, limit int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used[key]
	if used+n > limit {
		return used, QuotaExceededError(key, used, n, limit)
	}
	s.used[key] = used + n
	s.updated[key] = time.Now()
	return used + n, nil
}

func (s *MemoryQuotaStore) Release(ctx context.Context, key string, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.used[key] = max(s.used[key]-n, 0)
	s.updated[key] = time.Now()
	return nil
}

func (s *MemoryQuotaStore) Used(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[key], nil
}

func (s *MemoryQuotaStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, at := range s.updated {
		if at.Before(cutoff) {
			delete(s.used, key)
			delete(s.updated, key)
			n++
		}
	}
	return n, nil
}

func (s *MemoryQuotaStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryQuotaStore) Close() error { return nil }
