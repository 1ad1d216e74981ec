package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckReadiness_NoChecks(t *testing.T) {
	checker := New(0)

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusReady {
		t.Errorf("expected %q, got %q", StatusReady, status.Status)
	}
}

func TestCheckReadiness_NonCriticalFailureDegrades(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("audit_store", true, func(context.Context) error { return nil })
	checker.RegisterCheck("semantic_analyzer", false, func(context.Context) error {
		return errors.New("connection refused")
	})

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusDegraded {
		t.Errorf("expected %q, got %q", StatusDegraded, status.Status)
	}
	if status.Checks["semantic_analyzer"].Message != "connection refused" {
		t.Errorf("unexpected check result: %+v", status.Checks["semantic_analyzer"])
	}
}

func TestCheckReadiness_CriticalFailure(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("quota_store", true, func(context.Context) error {
		return errors.New("database is locked")
	})
	checker.RegisterCheck("semantic_analyzer", false, func(context.Context) error {
		return errors.New("timeout")
	})

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusUnavailable {
		t.Errorf("expected %q, got %q", StatusUnavailable, status.Status)
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("slow", true, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy || result.Message != ErrCheckTimeout.Error() {
		t.Errorf("expected timeout result, got %+v", result)
	}
}

func TestListChecks(t *testing.T) {
	checker := New(0)
	checker.RegisterCheck("b", false, func(context.Context) error { return nil })
	checker.RegisterCheck("a", true, func(context.Context) error { return nil })
	checker.UnregisterCheck("b")

	names := checker.ListChecks()
	if len(names) != 1 || names[0] != "a" {
		t.Errorf("unexpected checks: %v", names)
	}
}

func TestReadinessHandler(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("audit_store", true, func(context.Context) error {
		return errors.New("closed")
	})

	rec := httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if status.Status != StatusUnavailable {
		t.Errorf("expected %q, got %q", StatusUnavailable, status.Status)
	}
}

func TestLivenessHandler(t *testing.T) {
	checker := New(0)

	rec := httptest.NewRecorder()
	checker.LivenessHandler()(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	checker.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
