package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "text debug", cfg: Config{Level: "debug", Format: "text"}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn message should be written")
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := WithContentID(context.Background(), "content-1")
	ctx = WithAdvisorID(ctx, "adv-7")
	logger.Slog().InfoContext(ctx, "validated")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if record["content_id"] != "content-1" {
		t.Errorf("expected content_id in record, got %v", record)
	}
	if record["advisor_id"] != "adv-7" {
		t.Errorf("expected advisor_id in record, got %v", record)
	}
}

func TestLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := WithDeliveryID(context.Background(), "del-9")
	logger.WithContext(ctx).Info("sent")

	if !strings.Contains(buf.String(), `"delivery_id":"del-9"`) {
		t.Errorf("expected delivery_id, got %s", buf.String())
	}

	if logger.WithContext(context.Background()) != logger {
		t.Error("WithContext with empty context should return the same logger")
	}
}

func TestLogger_PIIRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", RedactPII: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	logger.Info("dispatching",
		"recipient", "+919876543210",
		"api_key", "secret-value",
		"note", "call 9876543210 or mail ops@example.com",
	)

	out := buf.String()
	for _, leaked := range []string{"+919876543210", "secret-value", "9876543210", "ops@example.com"} {
		if strings.Contains(out, leaked) {
			t.Errorf("output leaked %q: %s", leaked, out)
		}
	}
	if !strings.Contains(out, "10") {
		t.Errorf("expected last digits of recipient to be kept: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warning", "error", ""} {
		if _, err := parseLevel(level); err != nil {
			t.Errorf("parseLevel(%q) unexpected error: %v", level, err)
		}
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}
