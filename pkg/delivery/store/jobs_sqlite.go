package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
)

// SQLiteJobStore persists jobs as JSON documents. Idempotency keys are
// unique across all jobs still in the table.
type SQLiteJobStore struct {
	db        *sql.DB
	closeOnce sync.Once
}

var _ delivery.JobStore = (*SQLiteJobStore)(nil)

// NewSQLiteJobStore opens (creating if needed) the job database.
func NewSQLiteJobStore(path string, busyTimeout time.Duration) (*SQLiteJobStore, error) {
	db, err := openSQLite(path, busyTimeout)
	if err != nil {
		return nil, err
	}

	s := &SQLiteJobStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteJobStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS delivery_jobs (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		idempotency_key TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_delivery_jobs_idempotency
		ON delivery_jobs(idempotency_key) WHERE idempotency_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_delivery_jobs_state ON delivery_jobs(state, created_at);
	`)
	return err
}

func (s *SQLiteJobStore) Save(ctx context.Context, job *delivery.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	var key sql.NullString
	if job.IdempotencyKey != "" {
		key = sql.NullString{String: job.IdempotencyKey, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO delivery_jobs (id, state, idempotency_key, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			state = excluded.state,
			idempotency_key = excluded.idempotency_key,
			updated_at = excluded.updated_at,
			payload = excluded.payload
	`, job.ID, string(job.State), key, job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano(), string(payload))
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteJobStore) Get(ctx context.Context, id string) (*delivery.Job, error) {
	return s.queryOne(ctx, `SELECT payload FROM delivery_jobs WHERE id = ?`, id)
}

func (s *SQLiteJobStore) FindByIdempotencyKey(ctx context.Context, key string) (*delivery.Job, error) {
	return s.queryOne(ctx, `SELECT payload FROM delivery_jobs WHERE idempotency_key = ?`, key)
}

func (s *SQLiteJobStore) queryOne(ctx context.Context, query string, arg string) (*delivery.Job, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, delivery.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return decodeJob(payload)
}

func (s *SQLiteJobStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM delivery_jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteJobStore) Pending(ctx context.Context) ([]*delivery.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM delivery_jobs
		WHERE state NOT IN (?, ?)
		ORDER BY created_at ASC, id ASC
	`, string(delivery.JobDelivered), string(delivery.JobFailed))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*delivery.Job
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job, err := decodeJob(payload)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *SQLiteJobStore) PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM delivery_jobs WHERE state IN (?, ?) AND updated_at < ?
	`, string(delivery.JobDelivered), string(delivery.JobFailed), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to purge jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteJobStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

func decodeJob(payload string) (*delivery.Job, error) {
	var job delivery.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
