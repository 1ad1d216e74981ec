package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
)

// MemoryStorage implements audit.Storage in memory. It is used in tests and
// for the "memory" backend; nothing survives a restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]*audit.Entry
	closed  bool
}

var _ audit.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]*audit.Entry),
	}
}

// Append stores a copy of entry.
func (s *MemoryStorage) Append(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return audit.NewStorageError("memory", "append", audit.ErrClosed)
	}
	if _, exists := s.entries[entry.ID]; exists {
		return audit.NewStorageError("memory", "append", audit.ErrDuplicateEntry)
	}
	s.entries[entry.ID] = entry.Clone()
	return nil
}

// Query returns copies of the matching entries.
func (s *MemoryStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Entry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := s.match(q)
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Timestamp.Equal(b.Timestamp) {
			if q.Descending() {
				return a.ID > b.ID
			}
			return a.ID < b.ID
		}
		if q.Descending() {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.Timestamp.Before(b.Timestamp)
	})

	if q.Offset >= len(matched) {
		return []*audit.Entry{}, nil
	}
	matched = matched[q.Offset:]
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// Count returns the number of matching entries.
func (s *MemoryStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.match(q))), nil
}

// GetByID returns a copy of a single entry.
func (s *MemoryStorage) GetByID(ctx context.Context, id string) (*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, audit.ErrNotFound
	}
	return e.Clone(), nil
}

// PurgeExpired deletes entries whose retention date is before now.
func (s *MemoryStorage) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, audit.NewStorageError("memory", "purge", audit.ErrClosed)
	}

	var purged int64
	for id, e := range s.entries {
		if e.RetentionDate.Before(now) {
			delete(s.entries, id)
			purged++
		}
	}
	return purged, nil
}

// Ping fails once the store is closed.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return audit.NewStorageError("memory", "ping", audit.ErrClosed)
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStorage) match(q *audit.Query) []*audit.Entry {
	var out []*audit.Entry
	for _, e := range s.entries {
		if q.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}
