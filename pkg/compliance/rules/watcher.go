package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/metrics"
)

// Watcher reloads an Engine's rulebook when the rulebook file changes.
// Bursts of events are collapsed by a Debouncer. A rulebook that fails to
// parse is logged and the previous one stays active.
type Watcher struct {
	engine   *Engine
	path     string
	watcher  *fsnotify.Watcher
	debounce *Debouncer
	logger   *slog.Logger

	// OnReload, if set, is called after every reload attempt.
	OnReload func(error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	once    sync.Once
}

// NewWatcher creates a watcher for the rulebook at path.
func NewWatcher(engine *Engine, path string, interval time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rulebook path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		engine:   engine,
		path:     abs,
		watcher:  fw,
		debounce: NewDebouncer(interval),
		logger:   logger.With("component", "rules.watcher"),
		stopCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called. The parent
// directory is watched so editors that replace the file by rename are seen.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.Stop()
		w.watcher.Close()
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch rulebook directory: %w", err)
	}

	w.logger.Info("rulebook watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("rulebook file event", "op", event.Op.String())
			w.debounce.Trigger(w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("rulebook watcher error", "error", err)
		}
	}
}

// Stop ends Watch.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stopCh) })
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	if event.Op&fsnotify.Remove == fsnotify.Remove {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *Watcher) reload() {
	rb, err := LoadRulebook(w.path)
	if err == nil {
		err = w.engine.Reload(rb)
	}

	if err != nil {
		metrics.RulebookReloads.WithLabelValues("file", "error").Inc()
		w.logger.Error("rulebook reload failed, keeping previous rulebook", "error", err)
	} else {
		metrics.RulebookReloads.WithLabelValues("file", "success").Inc()
		w.logger.Info("rulebook reloaded", "version", rb.Version)
	}

	if w.OnReload != nil {
		w.OnReload(err)
	}
}

// Debouncer runs the most recent callback once no new trigger has arrived
// for the configured interval.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

// NewDebouncer creates a Debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			callback()
		}
	})
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
