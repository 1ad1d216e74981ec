package rules

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("expected no calls after Stop, got %d", got)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rulebook.yaml")
	writeRulebook(t, path, "v1")

	rb, err := LoadRulebook(path)
	if err != nil {
		t.Fatalf("LoadRulebook: %v", err)
	}
	engine, err := NewEngine(rb)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	w, err := NewWatcher(engine, path, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	reloaded := make(chan error, 4)
	w.OnReload = func(err error) { reloaded <- err }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx)

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeRulebook(t, path, "v2")

	select {
	case err := <-reloaded:
		if err != nil {
			t.Fatalf("reload failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	if engine.Rulebook().Version != "v2" {
		t.Errorf("expected version v2, got %q", engine.Rulebook().Version)
	}
	w.Stop()
}

func writeRulebook(t *testing.T, path, version string) {
	t.Helper()
	data := []byte("version: \"" + version + "\"\ncritical_terms:\n  - pattern: 'no risk'\n    message: prohibited\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write rulebook: %v", err)
	}
}
