package delivery

import (
	"context"
	"sort"
	"sync"
	"time"
)

// JobStore persists jobs so undelivered work survives a restart and
// idempotency keys outlive the jobs that used them.
type JobStore interface {
	// Save inserts or replaces a job.
	Save(ctx context.Context, job *Job) error

	// Get returns a job or ErrJobNotFound.
	Get(ctx context.Context, id string) (*Job, error)

	// Delete removes a job.
	Delete(ctx context.Context, id string) error

	// Pending returns every non-terminal job, oldest first.
	Pending(ctx context.Context) ([]*Job, error)

	// FindByIdempotencyKey returns the job admitted under key or ErrJobNotFound.
	FindByIdempotencyKey(ctx context.Context, key string) (*Job, error)

	// PurgeTerminal removes terminal jobs last updated before cutoff.
	PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// MemoryJobStore keeps jobs in memory. Close is a no-op so one instance can
// back several queue generations in tests.
type MemoryJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	byKey map[string]string
}

var _ JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:  make(map[string]*Job),
		byKey: make(map[string]string),
	}
}

func (s *MemoryJobStore) Save(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	if job.IdempotencyKey != "" {
		s.byKey[job.IdempotencyKey] = job.ID
	}
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

func (s *MemoryJobStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok && j.IdempotencyKey != "" {
		delete(s.byKey, j.IdempotencyKey)
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryJobStore) Pending(ctx context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Job
	for _, j := range s.jobs {
		if !j.State.Terminal() {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out, nil
}

func (s *MemoryJobStore) FindByIdempotencyKey(ctx context.Context, key string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return nil, ErrJobNotFound
	}
	return s.jobs[id].Clone(), nil
}

func (s *MemoryJobStore) PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, j := range s.jobs {
		if j.State.Terminal() && j.UpdatedAt.Before(cutoff) {
			if j.IdempotencyKey != "" {
				delete(s.byKey, j.IdempotencyKey)
			}
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryJobStore) Close() error { return nil }
