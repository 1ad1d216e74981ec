package trail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/export"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/metrics"
)

// Config contains configuration for the audit trail.
type Config struct {
	// RetentionYears is added to each entry's timestamp to compute its
	// retention date.
	RetentionYears int

	// AsyncBuffer is the size of the async write channel.
	AsyncBuffer int

	// WriteTimeout bounds both enqueueing and writing an entry.
	WriteTimeout time.Duration

	// DefaultLimit applies when a query has no limit.
	DefaultLimit int

	// MaxLimit caps the page size.
	MaxLimit int

	// MaxExportSize caps the number of entries in one export.
	MaxExportSize int

	// JSONPretty indents JSON exports.
	JSONPretty bool
}

// DefaultConfig returns the default trail configuration.
func DefaultConfig() Config {
	return Config{
		RetentionYears: config.DefaultAuditRetentionYears,
		AsyncBuffer:    config.DefaultAuditRecorderAsyncBuffer,
		WriteTimeout:   config.DefaultAuditRecorderWriteTimeout,
		DefaultLimit:   config.DefaultAuditQueryDefaultLimit,
		MaxLimit:       config.DefaultAuditQueryMaxLimit,
		MaxExportSize:  config.DefaultAuditExportMaxSize,
	}
}

// ConfigFrom converts the file configuration.
func ConfigFrom(cfg config.AuditConfig) Config {
	return Config{
		RetentionYears: cfg.Retention.Years,
		AsyncBuffer:    cfg.Recorder.AsyncBuffer,
		WriteTimeout:   cfg.Recorder.WriteTimeout,
		DefaultLimit:   cfg.Query.DefaultLimit,
		MaxLimit:       cfg.Query.MaxLimit,
		MaxExportSize:  cfg.Export.MaxExportSize,
		JSONPretty:     cfg.Export.JSONPretty,
	}
}

// Option configures a Trail.
type Option func(*Trail)

// WithFlagger adds a receiver for high-risk entries.
func WithFlagger(f audit.Flagger) Option {
	return func(t *Trail) { t.flaggers = append(t.flaggers, f) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Trail) { t.now = now }
}

// Trail is the audit trail. Verdicts are written synchronously through
// Record; delivery outcomes may go through RecordAsync, which a background
// worker drains into storage.
type Trail struct {
	storage  audit.Storage
	config   Config
	flaggers []audit.Flagger
	now      func() time.Time
	logger   *slog.Logger

	entries   chan *audit.Entry
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a trail over storage and starts its async worker. The trail
// owns storage and closes it on Close.
func New(storage audit.Storage, cfg Config, logger *slog.Logger, opts ...Option) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = config.DefaultAuditRecorderAsyncBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultAuditRecorderWriteTimeout
	}

	t := &Trail{
		storage: storage,
		config:  cfg,
		now:     time.Now,
		logger:  logger.With("component", "audit.trail"),
		entries: make(chan *audit.Entry, cfg.AsyncBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.wg.Add(1)
	go t.worker()

	t.logger.Info("audit trail initialized",
		"retention_years", cfg.RetentionYears,
		"async_buffer", cfg.AsyncBuffer,
		"flaggers", len(t.flaggers),
	)

	return t
}

// Record validates, completes and persists entry, returning its ID.
func (t *Trail) Record(ctx context.Context, entry *audit.Entry) (string, error) {
	if err := t.prepare(entry); err != nil {
		return "", err
	}
	if err := t.write(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

// RecordAsync completes entry and queues it for the background writer. The
// returned ID is valid once the write lands. When the buffer stays full for
// WriteTimeout the entry is written synchronously instead.
func (t *Trail) RecordAsync(ctx context.Context, entry *audit.Entry) (string, error) {
	if err := t.prepare(entry); err != nil {
		return "", err
	}

	select {
	case <-t.done:
		return "", audit.NewRecorderError(entry.ID, audit.ErrClosed)
	default:
	}

	timer := time.NewTimer(t.config.WriteTimeout)
	defer timer.Stop()

	select {
	case t.entries <- entry:
		return entry.ID, nil
	case <-timer.C:
		t.logger.Warn("audit channel full, writing synchronously",
			"entry_id", entry.ID,
			"action", entry.Action,
			"channel_capacity", t.config.AsyncBuffer,
		)
		if err := t.write(ctx, entry); err != nil {
			return "", err
		}
		return entry.ID, nil
	case <-ctx.Done():
		return "", audit.NewRecorderError(entry.ID, ctx.Err())
	case <-t.done:
		return "", audit.NewRecorderError(entry.ID, audit.ErrClosed)
	}
}

// RecordValidation records a pipeline verdict.
func (t *Trail) RecordValidation(ctx context.Context, item *compliance.ContentItem, result *compliance.ValidationResult, autofixed bool) error {
	action := audit.ActionContentValidated
	if autofixed {
		action = audit.ActionContentAutofixed
	}

	entry := &audit.Entry{
		Timestamp:            result.ValidatedAt,
		Action:               action,
		AdvisorID:            item.AdvisorID,
		ContentID:            item.ID,
		ContentHash:          result.ContentHash,
		RiskScore:            result.RiskScore,
		ColorCode:            string(result.ColorCode),
		IsCompliant:          result.IsCompliant,
		FallbackUsed:         result.FallbackUsed,
		ViolationTypes:       compliance.ViolationTypes(result.Violations),
		Stages:               result.Stages,
		RegulatoryIdentifier: item.AdvisorIdentifier,
		ProcessingTime:       result.ProcessingTime,
	}

	_, err := t.Record(ctx, entry)
	return err
}

// Query returns one page of matching entries with the total match count.
func (t *Trail) Query(ctx context.Context, q audit.Query) (*audit.QueryResult, error) {
	if q.Limit == 0 {
		q.Limit = t.config.DefaultLimit
	}
	if t.config.MaxLimit > 0 && q.Limit > t.config.MaxLimit {
		q.Limit = t.config.MaxLimit
	}

	total, err := t.storage.Count(ctx, &q)
	if err != nil {
		return nil, err
	}
	entries, err := t.storage.Query(ctx, &q)
	if err != nil {
		return nil, err
	}

	return &audit.QueryResult{
		Entries: entries,
		Total:   total,
		HasMore: int64(q.Offset+len(entries)) < total,
	}, nil
}

// ExportRequest selects entries for a compliance export.
type ExportRequest struct {
	// AdvisorID limits the export to one advisor. Empty exports all advisors.
	AdvisorID string

	// Start and End bound the entry timestamps (inclusive start, exclusive end).
	Start time.Time
	End   time.Time

	Format export.Format
}

// ExportForCompliance serializes exportable entries in the requested range,
// oldest first.
func (t *Trail) ExportForCompliance(ctx context.Context, req ExportRequest) (*export.Export, error) {
	if req.Format == "" {
		req.Format = export.FormatJSON
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return nil, audit.NewExportError(string(req.Format), 0, errors.New("start and end are required"))
	}

	q := audit.Query{
		AdvisorID:      req.AdvisorID,
		StartTime:      &req.Start,
		EndTime:        &req.End,
		ExportableOnly: true,
		SortOrder:      audit.SortAsc,
	}

	total, err := t.storage.Count(ctx, &q)
	if err != nil {
		return nil, err
	}
	if t.config.MaxExportSize > 0 && total > int64(t.config.MaxExportSize) {
		return nil, audit.NewExportError(string(req.Format), int(total),
			fmt.Errorf("export exceeds maximum of %d entries", t.config.MaxExportSize))
	}

	entries, err := t.storage.Query(ctx, &q)
	if err != nil {
		return nil, err
	}

	exp, err := export.Build(ctx, entries, req.Format, t.config.JSONPretty)
	if err != nil {
		return nil, err
	}

	t.logger.InfoContext(ctx, "compliance export generated",
		"advisor_id", req.AdvisorID,
		"format", req.Format,
		"record_count", exp.RecordCount,
		"checksum", exp.Checksum,
	)

	return exp, nil
}

// PurgeExpired removes entries whose retention date has passed. Entries with
// a retention date in the future are never removed.
func (t *Trail) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := t.storage.PurgeExpired(ctx, t.now())
	if err != nil {
		return 0, audit.NewRetentionError(t.config.RetentionYears, err)
	}

	metrics.AuditPurged.Add(float64(purged))
	if purged > 0 {
		t.logger.InfoContext(ctx, "expired audit entries purged", "purged_count", purged)
	}
	return purged, nil
}

// Get returns a single entry.
func (t *Trail) Get(ctx context.Context, id string) (*audit.Entry, error) {
	return t.storage.GetByID(ctx, id)
}

// Ping checks the storage backend.
func (t *Trail) Ping(ctx context.Context) error {
	return t.storage.Ping(ctx)
}

// Close drains queued entries and closes storage.
func (t *Trail) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.logger.Info("shutting down audit trail")
		close(t.done)
		t.wg.Wait()
		err = t.storage.Close()
		t.logger.Info("audit trail shut down complete")
	})
	return err
}

// prepare assigns the ID and timestamp, computes retention and flags
// high-risk verdicts.
func (t *Trail) prepare(e *audit.Entry) error {
	if !e.Action.Valid() {
		return audit.NewRecorderError(e.ID, fmt.Errorf("unknown action %q", e.Action))
	}
	if e.AdvisorID == "" {
		return audit.NewRecorderError(e.ID, errors.New("advisor id is required"))
	}
	if e.Action.Verdict() && e.ContentHash == "" {
		return audit.NewRecorderError(e.ID, errors.New("content hash is required for verdicts"))
	}
	if e.ContentHash != "" && !validHash(e.ContentHash) {
		return audit.NewRecorderError(e.ID, fmt.Errorf("invalid content hash %q", e.ContentHash))
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.now()
	}
	e.Timestamp = e.Timestamp.UTC()
	e.RetentionDate = e.Timestamp.AddDate(t.config.RetentionYears, 0, 0)
	e.Exportable = e.Action.Exportable()
	e.Flagged, e.FlagReason = e.HighRisk()

	return nil
}

func (t *Trail) write(ctx context.Context, e *audit.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, t.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := t.storage.Append(ctx, e); err != nil {
		metrics.AuditWriteErrors.Inc()
		t.logger.ErrorContext(ctx, "failed to write audit entry",
			"entry_id", e.ID,
			"action", e.Action,
			"error", err,
		)
		return audit.NewRecorderError(e.ID, err)
	}

	metrics.AuditEntries.WithLabelValues(string(e.Action), strconv.FormatBool(e.Flagged)).Inc()

	if duration := time.Since(start); duration > t.config.WriteTimeout/2 {
		t.logger.WarnContext(ctx, "slow audit write",
			"entry_id", e.ID,
			"duration_ms", duration.Milliseconds(),
		)
	}

	if e.Flagged {
		t.logger.WarnContext(ctx, "audit entry flagged for review",
			"entry_id", e.ID,
			"advisor_id", e.AdvisorID,
			"content_id", e.ContentID,
			"risk_score", e.RiskScore,
			"reason", e.FlagReason,
		)
		for _, f := range t.flaggers {
			f.Flag(ctx, e.Clone())
		}
	}

	return nil
}

func (t *Trail) worker() {
	defer t.wg.Done()

	for {
		select {
		case e := <-t.entries:
			t.write(context.Background(), e)

		case <-t.done:
			for {
				select {
				case e := <-t.entries:
					t.write(context.Background(), e)
				default:
					return
				}
			}
		}
	}
}

func validHash(h string) bool {
	if len(h) != 64 {
		return false
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
