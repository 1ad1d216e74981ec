package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

// SQLiteConfig contains configuration for the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         config.DefaultAuditSQLitePath,
		MaxOpenConns: config.DefaultAuditSQLiteMaxOpenConns,
		MaxIdleConns: config.DefaultAuditSQLiteMaxIdleConns,
		BusyTimeout:  config.DefaultAuditSQLiteBusyTimeout,
	}
}

// SQLiteConfigFrom converts the file configuration.
func SQLiteConfigFrom(cfg config.SQLiteConfig) *SQLiteConfig {
	return &SQLiteConfig{
		Path:         cfg.Path,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
		BusyTimeout:  cfg.BusyTimeout,
	}
}

// SQLiteStorage implements audit.Storage on SQLite in WAL mode. Rows are only
// ever inserted or purged; a trigger rejects updates.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

var _ audit.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (creating if needed) the audit database.
func NewSQLiteStorage(cfg *SQLiteConfig) (*SQLiteStorage, error) {
	if cfg == nil {
		cfg = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, audit.NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: cfg,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("audit storage initialized",
		"path", cfg.Path,
		"max_open_conns", cfg.MaxOpenConns,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return audit.NewStorageError("sqlite", "enable_wal", err)
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Append inserts a new entry.
func (s *SQLiteStorage) Append(ctx context.Context, e *audit.Entry) error {
	violations, err := json.Marshal(e.ViolationTypes)
	if err != nil {
		return audit.NewStorageError("sqlite", "marshal_violations", err)
	}
	stages, err := json.Marshal(e.Stages)
	if err != nil {
		return audit.NewStorageError("sqlite", "marshal_stages", err)
	}

	_, err = s.db.ExecContext(ctx, insertEntry,
		e.ID, e.Timestamp.UTC().UnixNano(), string(e.Action),
		e.AdvisorID, nullString(e.ContentID), nullString(e.DeliveryID), nullString(e.ContentHash),
		e.RiskScore, nullString(e.ColorCode), e.IsCompliant, e.FallbackUsed, string(violations), string(stages),
		nullString(e.RegulatoryIdentifier), e.ProcessingTime.Milliseconds(),
		nullString(e.DeliveryStatus), nullString(e.MessageID), e.Attempts, nullString(e.ErrorKind), nullString(e.Error),
		e.RetentionDate.UTC().UnixNano(), e.Exportable, e.Flagged, nullString(e.FlagReason),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return audit.NewStorageError("sqlite", "append", audit.ErrDuplicateEntry)
		}
		return audit.NewStorageError("sqlite", "append", err)
	}

	s.logger.Debug("audit entry appended", "entry_id", e.ID, "action", e.Action)
	return nil
}

// Query returns matching entries ordered by timestamp.
func (s *SQLiteStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Entry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(q)

	order := "DESC"
	if !q.Descending() {
		order = "ASC"
	}

	sqlQuery := "SELECT " + selectColumns + " FROM audit_entries"
	if where != "" {
		sqlQuery += " WHERE " + where
	}
	sqlQuery += fmt.Sprintf(" ORDER BY timestamp %s, id %s", order, order)

	if q.Limit > 0 {
		sqlQuery += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	} else if q.Offset > 0 {
		sqlQuery += " LIMIT -1 OFFSET ?"
		args = append(args, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	entries := []*audit.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}

	return entries, nil
}

// Count returns the number of matching entries.
func (s *SQLiteStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	where, args := buildWhereClause(q)
	sqlQuery := "SELECT COUNT(*) FROM audit_entries"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// GetByID returns a single entry.
func (s *SQLiteStorage) GetByID(ctx context.Context, id string) (*audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM audit_entries WHERE id = ?", id)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "get", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, audit.NewStorageError("sqlite", "get", err)
		}
		return nil, audit.ErrNotFound
	}

	e, err := scanEntry(rows)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "scan", err)
	}
	return e, nil
}

// PurgeExpired deletes entries whose retention date is strictly before now.
func (s *SQLiteStorage) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_entries WHERE retention_date < ?", now.UTC().UnixNano())
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "purge", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "purge", err)
	}
	return purged, nil
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return audit.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("audit storage closed")
	return nil
}

func buildWhereClause(q *audit.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.AdvisorID != "" {
		conditions = append(conditions, "advisor_id = ?")
		args = append(args, q.AdvisorID)
	}
	if q.ContentID != "" {
		conditions = append(conditions, "content_id = ?")
		args = append(args, q.ContentID)
	}
	if q.DeliveryID != "" {
		conditions = append(conditions, "delivery_id = ?")
		args = append(args, q.DeliveryID)
	}
	if len(q.Actions) > 0 {
		placeholders := make([]string, len(q.Actions))
		for i, a := range q.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		conditions = append(conditions, "action IN ("+strings.Join(placeholders, ", ")+")")
	}
	if q.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, q.StartTime.UTC().UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, q.EndTime.UTC().UnixNano())
	}
	if q.Flagged != nil {
		conditions = append(conditions, "flagged = ?")
		args = append(args, *q.Flagged)
	}
	if q.MinRiskScore != nil {
		conditions = append(conditions, "risk_score >= ?")
		args = append(args, *q.MinRiskScore)
	}
	if q.ExportableOnly {
		conditions = append(conditions, "exportable = 1")
	}

	return strings.Join(conditions, " AND "), args
}

func scanEntry(rows *sql.Rows) (*audit.Entry, error) {
	var (
		e                                             audit.Entry
		action                                        string
		ts, retention, processingMs                   int64
		contentID, deliveryID, contentHash, colorCode sql.NullString
		violations, stages, regulatoryID              sql.NullString
		deliveryStatus, messageID, errorKind, errMsg  sql.NullString
		flagReason                                    sql.NullString
		attempts                                      sql.NullInt64
	)

	err := rows.Scan(
		&e.ID, &ts, &action,
		&e.AdvisorID, &contentID, &deliveryID, &contentHash,
		&e.RiskScore, &colorCode, &e.IsCompliant, &e.FallbackUsed, &violations, &stages,
		&regulatoryID, &processingMs,
		&deliveryStatus, &messageID, &attempts, &errorKind, &errMsg,
		&retention, &e.Exportable, &e.Flagged, &flagReason,
	)
	if err != nil {
		return nil, err
	}

	e.Action = audit.Action(action)
	e.Timestamp = time.Unix(0, ts).UTC()
	e.RetentionDate = time.Unix(0, retention).UTC()
	e.ProcessingTime = time.Duration(processingMs) * time.Millisecond
	e.ContentID = contentID.String
	e.DeliveryID = deliveryID.String
	e.ContentHash = contentHash.String
	e.ColorCode = colorCode.String
	e.RegulatoryIdentifier = regulatoryID.String
	e.DeliveryStatus = deliveryStatus.String
	e.MessageID = messageID.String
	e.Attempts = int(attempts.Int64)
	e.ErrorKind = errorKind.String
	e.Error = errMsg.String
	e.FlagReason = flagReason.String

	if violations.Valid && violations.String != "" && violations.String != "null" {
		if err := json.Unmarshal([]byte(violations.String), &e.ViolationTypes); err != nil {
			return nil, fmt.Errorf("decode violation types: %w", err)
		}
	}
	if stages.Valid && stages.String != "" && stages.String != "null" {
		var decoded []compliance.StageResult
		if err := json.Unmarshal([]byte(stages.String), &decoded); err != nil {
			return nil, fmt.Errorf("decode stages: %w", err)
		}
		e.Stages = decoded
	}

	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
