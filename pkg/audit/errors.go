package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entry does not exist.
	ErrNotFound = errors.New("audit entry not found")

	// ErrDuplicateEntry is returned when appending an ID that already exists.
	ErrDuplicateEntry = errors.New("audit entry already exists")

	// ErrClosed is returned after the trail or storage has been closed.
	ErrClosed = errors.New("audit trail closed")
)

// StorageError represents an error from the storage backend.
type StorageError struct {
	Backend   string // "memory", "sqlite"
	Operation string // "append", "query", "purge", ...
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// QueryError represents an invalid query.
type QueryError struct {
	Query *Query
	Cause error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("audit query error: %v", e.Cause)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

// NewQueryError creates a new QueryError.
func NewQueryError(query *Query, cause error) *QueryError {
	return &QueryError{
		Query: query,
		Cause: cause,
	}
}

// RecorderError represents a failure to record an entry.
type RecorderError struct {
	EntryID string
	Cause   error
}

func (e *RecorderError) Error() string {
	if e.EntryID != "" {
		return fmt.Sprintf("audit recorder error [entry_id=%s]: %v", e.EntryID, e.Cause)
	}
	return fmt.Sprintf("audit recorder error: %v", e.Cause)
}

func (e *RecorderError) Unwrap() error {
	return e.Cause
}

// NewRecorderError creates a new RecorderError.
func NewRecorderError(entryID string, cause error) *RecorderError {
	return &RecorderError{
		EntryID: entryID,
		Cause:   cause,
	}
}

// RetentionError represents a failure while purging expired entries.
type RetentionError struct {
	RetentionYears int
	Cause          error
}

func (e *RetentionError) Error() string {
	return fmt.Sprintf("audit retention error [retention_years=%d]: %v", e.RetentionYears, e.Cause)
}

func (e *RetentionError) Unwrap() error {
	return e.Cause
}

// NewRetentionError creates a new RetentionError.
func NewRetentionError(retentionYears int, cause error) *RetentionError {
	return &RetentionError{
		RetentionYears: retentionYears,
		Cause:          cause,
	}
}

// ExportError represents a failure during compliance export.
type ExportError struct {
	Format      string
	RecordCount int
	Cause       error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("audit export error [format=%s, record_count=%d]: %v", e.Format, e.RecordCount, e.Cause)
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new ExportError.
func NewExportError(format string, recordCount int, cause error) *ExportError {
	return &ExportError{
		Format:      format,
		RecordCount: recordCount,
		Cause:       cause,
	}
}
