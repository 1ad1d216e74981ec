package review

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/export"
)

func flagged(id string) *audit.Entry {
	return &audit.Entry{
		ID:         id,
		Action:     audit.ActionContentValidated,
		AdvisorID:  "adv-1",
		ContentID:  "content-" + id,
		RiskScore:  100,
		Flagged:    true,
		FlagReason: audit.FlagHighRisk,
	}
}

func TestLogFlagger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	NewLogFlagger(logger).Flag(context.Background(), flagged("e1"))

	out := buf.String()
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, `"entry_id":"e1"`) {
		t.Errorf("unexpected log output: %s", out)
	}
}

func TestQueue_Flush(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue(dir, "*/15 * * * *", nil)
	ctx := context.Background()

	batch, err := q.Flush(ctx)
	if err != nil || batch != nil {
		t.Fatalf("expected no batch when empty, got %v, %v", batch, err)
	}

	q.Flag(ctx, flagged("e1"))
	q.Flag(ctx, flagged("e2"))
	if q.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", q.Pending())
	}

	batch, err = q.Flush(ctx)
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if batch.RecordCount != 2 || q.Pending() != 0 {
		t.Errorf("unexpected batch %+v with %d pending", batch, q.Pending())
	}

	data, err := os.ReadFile(batch.Path)
	if err != nil {
		t.Fatalf("read batch: %v", err)
	}
	count, sum, err := export.Verify(data, export.FormatJSON)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if count != 2 || sum != batch.Checksum {
		t.Errorf("batch does not verify: count=%d checksum=%s", count, sum)
	}

	sidecar, err := os.ReadFile(batch.Path + ".sha256")
	if err != nil {
		t.Fatalf("read checksum file: %v", err)
	}
	if !strings.HasPrefix(string(sidecar), batch.Checksum) {
		t.Errorf("checksum file mismatch: %s", sidecar)
	}
}

func TestQueue_StopFlushesPending(t *testing.T) {
	dir := t.TempDir()
	q := NewQueue(dir, "0 0 1 1 *", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	q.Flag(ctx, flagged("e1"))
	q.Stop()

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("expected batch and checksum files, got %d files", len(files))
	}
}

func TestQueue_InvalidSchedule(t *testing.T) {
	q := NewQueue(t.TempDir(), "sometimes", nil)
	if err := q.Start(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
