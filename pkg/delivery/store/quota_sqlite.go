package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
)

// SQLiteQuotaStore keeps daily counters in SQLite. Reserve is a single
// conditional upsert, so concurrent callers in any process sharing the file
// can never push a counter past its limit.
type SQLiteQuotaStore struct {
	db        *sql.DB
	closeOnce sync.Once

	reserveStmt *sql.Stmt
	releaseStmt *sql.Stmt
	usedStmt    *sql.Stmt
}

var (
	_ delivery.QuotaStore  = (*SQLiteQuotaStore)(nil)
	_ delivery.QuotaPruner = (*SQLiteQuotaStore)(nil)
)

// NewSQLiteQuotaStore opens (creating if needed) the quota database.
func NewSQLiteQuotaStore(path string, busyTimeout time.Duration) (*SQLiteQuotaStore, error) {
	db, err := openSQLite(path, busyTimeout)
	if err != nil {
		return nil, err
	}

	s := &SQLiteQuotaStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLiteQuotaStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS quota_counters (
		key TEXT PRIMARY KEY,
		used INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_quota_counters_updated ON quota_counters(updated_at);
	`)
	return err
}

func (s *SQLiteQuotaStore) prepareStatements() error {
	var err error

	// The SELECT inserts nothing when n alone exceeds the limit; the
	// conflict branch updates nothing when the sum would. Either way no
	// row is returned.
	s.reserveStmt, err = s.db.Prepare(`
		INSERT INTO quota_counters (key, used, updated_at)
		SELECT ?1, ?2, ?3 WHERE ?2 <= ?4
		ON CONFLICT (key) DO UPDATE SET
			used = quota_counters.used + excluded.used,
			updated_at = excluded.updated_at
		WHERE quota_counters.used + excluded.used <= ?4
		RETURNING used
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare reserve statement: %w", err)
	}

	s.releaseStmt, err = s.db.Prepare(`
		UPDATE quota_counters SET used = MAX(used - ?1, 0), updated_at = ?2 WHERE key = ?3
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare release statement: %w", err)
	}

	s.usedStmt, err = s.db.Prepare(`SELECT used FROM quota_counters WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare used statement: %w", err)
	}
	return nil
}

// Reserve adds n to key if the total stays within limit.
func (s *SQLiteQuotaStore) Reserve(ctx context.Context, key string, n, limit int64) (int64, error) {
	var used int64
	err := s.reserveStmt.QueryRowContext(ctx, key, n, time.Now().UnixNano(), limit).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		current, uerr := s.Used(ctx, key)
		if uerr != nil {
			return 0, uerr
		}
		return current, delivery.QuotaExceededError(key, current, n, limit)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to reserve quota: %w", err)
	}
	return used, nil
}

// Release subtracts n from key, never going below zero.
func (s *SQLiteQuotaStore) Release(ctx context.Context, key string, n int64) error {
	if _, err := s.releaseStmt.ExecContext(ctx, n, time.Now().UnixNano(), key); err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}

// Used returns the counter for key, zero when absent.
func (s *SQLiteQuotaStore) Used(ctx context.Context, key string) (int64, error) {
	var used int64
	err := s.usedStmt.QueryRowContext(ctx, key).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota: %w", err)
	}
	return used, nil
}

// PruneBefore deletes counters not touched since cutoff.
func (s *SQLiteQuotaStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quota_counters WHERE updated_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune quota counters: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteQuotaStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteQuotaStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.reserveStmt, s.releaseStmt, s.usedStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
