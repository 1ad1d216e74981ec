package review

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/export"
)

// LogFlagger raises an error-level log line for every flagged entry so that
// log-based alerting picks it up immediately.
type LogFlagger struct {
	logger *slog.Logger
}

var _ audit.Flagger = (*LogFlagger)(nil)

// NewLogFlagger creates a LogFlagger.
func NewLogFlagger(logger *slog.Logger) *LogFlagger {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogFlagger{logger: logger.With("component", "audit.review")}
}

// Flag logs the entry.
func (f *LogFlagger) Flag(ctx context.Context, e *audit.Entry) {
	f.logger.ErrorContext(ctx, "high-risk content requires expedited review",
		"entry_id", e.ID,
		"advisor_id", e.AdvisorID,
		"content_id", e.ContentID,
		"risk_score", e.RiskScore,
		"reason", e.FlagReason,
		"violations", e.ViolationTypes,
	)
}

// Queue buffers flagged entries and periodically writes them to a directory
// as a checksummed JSON batch for reviewers.
type Queue struct {
	dir      string
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	pending []*audit.Entry
	running bool
}

var _ audit.Flagger = (*Queue)(nil)

// NewQueue creates a review queue writing batches to dir.
func NewQueue(dir, schedule string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		dir:      dir,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "audit.review.queue"),
	}
}

// Flag buffers the entry for the next batch.
func (q *Queue) Flag(ctx context.Context, e *audit.Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, e)
}

// Pending returns the number of buffered entries.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Batch describes a written review batch.
type Batch struct {
	Path        string
	RecordCount int
	Checksum    string
}

// Flush writes buffered entries to a new batch file. It returns nil when
// nothing is pending. The checksum is written alongside as <file>.sha256.
func (q *Queue) Flush(ctx context.Context) (*Batch, error) {
	q.mu.Lock()
	entries := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(entries) == 0 {
		return nil, nil
	}

	exp, err := export.Build(ctx, entries, export.FormatJSON, true)
	if err != nil {
		q.requeue(entries)
		return nil, err
	}

	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		q.requeue(entries)
		return nil, audit.NewExportError(string(export.FormatJSON), len(entries), err)
	}

	name := fmt.Sprintf("review-%s.json", exp.GeneratedAt.Format("20060102T150405.000000000Z"))
	path := filepath.Join(q.dir, name)

	if err := os.WriteFile(path, exp.Data, 0o640); err != nil {
		q.requeue(entries)
		return nil, audit.NewExportError(string(export.FormatJSON), len(entries), err)
	}
	if err := os.WriteFile(path+".sha256", []byte(exp.Checksum+"  "+name+"\n"), 0o640); err != nil {
		return nil, audit.NewExportError(string(export.FormatJSON), len(entries), err)
	}

	q.logger.WarnContext(ctx, "review batch written",
		"path", path,
		"record_count", exp.RecordCount,
		"checksum", exp.Checksum,
	)

	return &Batch{Path: path, RecordCount: exp.RecordCount, Checksum: exp.Checksum}, nil
}

// Start flushes on the configured cron schedule until ctx is cancelled.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return nil
	}
	if _, err := cron.ParseStandard(q.schedule); err != nil {
		return fmt.Errorf("invalid review schedule %q: %w", q.schedule, err)
	}
	if _, err := q.cron.AddFunc(q.schedule, func() {
		if _, err := q.Flush(ctx); err != nil {
			q.logger.Error("review batch failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule review export: %w", err)
	}

	q.cron.Start()
	q.running = true
	q.logger.Info("review queue started", "schedule", q.schedule, "output_dir", q.dir)

	go func() {
		<-ctx.Done()
		q.Stop()
	}()
	return nil
}

// Stop halts the schedule and flushes anything still pending.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.mu.Unlock()

	<-q.cron.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := q.Flush(ctx); err != nil {
		q.logger.Error("final review batch failed", "error", err)
	}
	q.logger.Info("review queue stopped")
}

func (q *Queue) requeue(entries []*audit.Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(entries, q.pending...)
}
