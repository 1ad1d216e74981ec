package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
)

func newQuotaStores(t *testing.T) map[string]delivery.QuotaStore {
	t.Helper()

	sq, err := NewSQLiteQuotaStore(filepath.Join(t.TempDir(), "quota.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	stores := map[string]delivery.QuotaStore{
		"memory": delivery.NewMemoryQuotaStore(),
		"sqlite": sq,
	}

	if addr := os.Getenv("JARVISH_TEST_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		prefix := "jarvish-test:" + t.Name() + ":" + time.Now().Format("150405.000000")
		stores["redis"] = NewRedisQuotaStore(client, prefix)
		t.Cleanup(func() { client.Close() })
	}
	return stores
}

func TestQuotaStore_ConcurrentReserveNeverExceedsLimit(t *testing.T) {
	for name, s := range newQuotaStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const limit = 20

			var admitted atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 60; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					n := int64(1 + i%3)
					if _, err := s.Reserve(ctx, "sender:2026-10-19", n, limit); err == nil {
						admitted.Add(n)
					} else {
						assert.True(t, errors.Is(err, delivery.ErrQuotaExceeded), "unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			used, err := s.Used(ctx, "sender:2026-10-19")
			require.NoError(t, err)
			assert.Equal(t, admitted.Load(), used)
			assert.LessOrEqual(t, used, int64(limit))
		})
	}
}

func TestQuotaStore_RejectedReserveLeavesCounter(t *testing.T) {
	for name, s := range newQuotaStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			used, err := s.Reserve(ctx, "k", 900, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(900), used)

			_, err = s.Reserve(ctx, "k", 10000, 1000)
			require.Error(t, err)
			assert.Equal(t, delivery.KindQuotaExceeded, delivery.KindOf(err))

			used, err = s.Used(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, int64(900), used)

			used, err = s.Reserve(ctx, "k", 100, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1000), used)
		})
	}
}

func TestQuotaStore_FirstReserveAboveLimit(t *testing.T) {
	for name, s := range newQuotaStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Reserve(ctx, "fresh", 5, 4)
			require.ErrorIs(t, err, delivery.ErrQuotaExceeded)

			used, err := s.Used(ctx, "fresh")
			require.NoError(t, err)
			assert.Zero(t, used)
		})
	}
}

func TestQuotaStore_ReleaseFloorsAtZero(t *testing.T) {
	for name, s := range newQuotaStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Reserve(ctx, "k", 3, 10)
			require.NoError(t, err)
			require.NoError(t, s.Release(ctx, "k", 1))

			used, err := s.Used(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, int64(2), used)

			require.NoError(t, s.Release(ctx, "k", 5))
			used, err = s.Used(ctx, "k")
			require.NoError(t, err)
			assert.Zero(t, used)
		})
	}
}

func TestSQLiteQuotaStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.db")
	ctx := context.Background()

	s, err := NewSQLiteQuotaStore(path, time.Second)
	require.NoError(t, err)
	_, err = s.Reserve(ctx, "k", 7, 10)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteQuotaStore(path, time.Second)
	require.NoError(t, err)
	defer s.Close()

	used, err := s.Used(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(7), used)

	_, err = s.Reserve(ctx, "k", 4, 10)
	assert.ErrorIs(t, err, delivery.ErrQuotaExceeded)
}

func TestSQLiteQuotaStore_PruneBefore(t *testing.T) {
	s, err := NewSQLiteQuotaStore(filepath.Join(t.TempDir(), "quota.db"), time.Second)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, err = s.Reserve(ctx, "old", 1, 10)
	require.NoError(t, err)

	n, err := s.PruneBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.PruneBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func newJobStores(t *testing.T) map[string]delivery.JobStore {
	t.Helper()
	sq, err := NewSQLiteJobStore(filepath.Join(t.TempDir(), "jobs.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]delivery.JobStore{
		"memory": delivery.NewMemoryJobStore(),
		"sqlite": sq,
	}
}

func testJob(id, key string, state delivery.JobState, created time.Time) *delivery.Job {
	return &delivery.Job{
		ID: id,
		Message: delivery.Message{
			Recipient: "+918123456789",
			Template: delivery.Template{
				Name:     "market_update",
				Language: "en",
				Components: []delivery.Component{
					{Type: "body", Parameters: []delivery.Parameter{{Type: "text", Text: "hello"}}},
				},
			},
			Metadata: delivery.Metadata{AdvisorID: "adv-1", ContentID: "content-1", Priority: delivery.PriorityNormal},
		},
		State:          state,
		Priority:       delivery.PriorityNormal,
		IdempotencyKey: key,
		QuotaKey:       "sender:2026-10-19",
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestJobStore_SaveGetAndPending(t *testing.T) {
	for name, s := range newJobStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

			require.NoError(t, s.Save(ctx, testJob("b", "key-b", delivery.JobQueued, base.Add(time.Second))))
			require.NoError(t, s.Save(ctx, testJob("a", "key-a", delivery.JobRetrying, base)))
			require.NoError(t, s.Save(ctx, testJob("c", "", delivery.JobDelivered, base)))

			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, delivery.JobRetrying, got.State)
			assert.Equal(t, "hello", got.Message.Template.Components[0].Parameters[0].Text)
			assert.True(t, got.CreatedAt.Equal(base))

			pending, err := s.Pending(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, "a", pending[0].ID)
			assert.Equal(t, "b", pending[1].ID)

			// upsert
			updated := testJob("a", "key-a", delivery.JobDelivered, base)
			updated.Attempts = 2
			require.NoError(t, s.Save(ctx, updated))
			got, err = s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, 2, got.Attempts)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, delivery.ErrJobNotFound)
		})
	}
}

func TestJobStore_IdempotencyAndPurge(t *testing.T) {
	for name, s := range newJobStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := time.Now().Add(-48 * time.Hour)

			require.NoError(t, s.Save(ctx, testJob("done", "batch-1:0", delivery.JobDelivered, old)))
			require.NoError(t, s.Save(ctx, testJob("live", "batch-1:1", delivery.JobQueued, old)))

			got, err := s.FindByIdempotencyKey(ctx, "batch-1:0")
			require.NoError(t, err)
			assert.Equal(t, "done", got.ID)

			n, err := s.PurgeTerminal(ctx, time.Now().Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)

			_, err = s.FindByIdempotencyKey(ctx, "batch-1:0")
			assert.ErrorIs(t, err, delivery.ErrJobNotFound)

			// non-terminal jobs are never purged
			_, err = s.Get(ctx, "live")
			assert.NoError(t, err)
		})
	}
}

func TestSQLiteJobStore_RejectsDuplicateIdempotencyKey(t *testing.T) {
	s, err := NewSQLiteJobStore(filepath.Join(t.TempDir(), "jobs.db"), time.Second)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testJob("one", "same", delivery.JobQueued, time.Now())))
	assert.Error(t, s.Save(ctx, testJob("two", "same", delivery.JobQueued, time.Now())))
}
