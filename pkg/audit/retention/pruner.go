package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Purger removes audit entries whose retention date has passed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Pruner runs retention purges and remembers the outcome of the last run.
type Pruner struct {
	purger Purger
	logger *slog.Logger

	mu          sync.Mutex
	lastRun     time.Time
	lastPurged  int64
	lastErr     error
	totalPurged int64
}

// NewPruner creates a pruner over purger.
func NewPruner(purger Purger, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		purger: purger,
		logger: logger.With("component", "audit.retention"),
	}
}

// Prune purges expired entries once.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	start := time.Now()
	purged, err := p.purger.PurgeExpired(ctx)

	p.mu.Lock()
	p.lastRun = start
	p.lastPurged = purged
	p.lastErr = err
	p.totalPurged += purged
	p.mu.Unlock()

	if err != nil {
		p.logger.ErrorContext(ctx, "retention purge failed", "error", err)
		return 0, err
	}

	p.logger.InfoContext(ctx, "retention purge completed",
		"purged_count", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged, nil
}

// Status describes the most recent purge.
type Status struct {
	LastRun     time.Time
	LastPurged  int64
	LastError   error
	TotalPurged int64
}

// Status returns the outcome of the most recent purge.
func (p *Pruner) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		LastRun:     p.lastRun,
		LastPurged:  p.lastPurged,
		LastError:   p.lastErr,
		TotalPurged: p.totalPurged,
	}
}
