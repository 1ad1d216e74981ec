package retention

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakePurger struct {
	calls  atomic.Int32
	purged int64
	err    error
}

func (f *fakePurger) PurgeExpired(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return f.purged, f.err
}

func TestPruner_Prune(t *testing.T) {
	purger := &fakePurger{purged: 4}
	p := NewPruner(purger, nil)

	for i := 0; i < 2; i++ {
		n, err := p.Prune(context.Background())
		if err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if n != 4 {
			t.Errorf("expected 4 purged, got %d", n)
		}
	}

	status := p.Status()
	if status.TotalPurged != 8 || status.LastPurged != 4 || status.LastRun.IsZero() {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestPruner_Error(t *testing.T) {
	p := NewPruner(&fakePurger{err: errors.New("database is locked")}, nil)

	if _, err := p.Prune(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if p.Status().LastError == nil {
		t.Error("expected last error recorded")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	p := NewPruner(&fakePurger{}, nil)
	s := NewScheduler(p, "0 3 * * *", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !s.IsRunning() {
		t.Error("expected scheduler running")
	}
	if next := s.NextRun(); next == nil || next.Hour() != 3 {
		t.Errorf("expected next run at 03:00, got %v", next)
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("expected scheduler stopped")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(NewPruner(&fakePurger{}, nil), "every day", nil)
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestScheduler_EmptySchedule(t *testing.T) {
	s := NewScheduler(NewPruner(&fakePurger{}, nil), "", nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if s.IsRunning() {
		t.Error("expected scheduler to stay idle without a schedule")
	}
}
