package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

func newTestAnalyzer(t *testing.T, url string, retries int) *HTTPAnalyzer {
	t.Helper()
	a, err := NewHTTPAnalyzer(config.SemanticConfig{
		Endpoint:   url,
		APIKey:     "sk-test",
		Model:      "compliance-analyzer",
		Timeout:    500 * time.Millisecond,
		MaxRetries: retries,
	}, nil)
	if err != nil {
		t.Fatalf("NewHTTPAnalyzer: %v", err)
	}
	a.retryBase = time.Millisecond
	return a
}

func TestNewHTTPAnalyzer_EmptyEndpoint(t *testing.T) {
	if _, err := NewHTTPAnalyzer(config.SemanticConfig{}, nil); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

func TestHTTPAnalyzer_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Language != "en" || req.Text == "" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Write([]byte(`{"tone":0.4,"misleading_claim_score":0.1,"clarity":0.9,"confidence":0.8}`))
	}))
	defer srv.Close()

	a := newTestAnalyzer(t, srv.URL, 0)
	scores, err := a.Analyze(context.Background(), "Invest via SIP", "en")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if scores.Tone != 0.4 || scores.MisleadingClaimScore != 0.1 || scores.Clarity != 0.9 || scores.Confidence != 0.8 {
		t.Errorf("unexpected scores: %+v", scores)
	}
}

func TestHTTPAnalyzer_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"tone":0,"misleading_claim_score":0,"clarity":1}`))
	}))
	defer srv.Close()

	a := newTestAnalyzer(t, srv.URL, 1)
	scores, err := a.Analyze(context.Background(), "text", "en")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
	if scores.Confidence != 1 {
		t.Errorf("missing confidence should default to 1, got %v", scores.Confidence)
	}
}

func TestHTTPAnalyzer_StopsAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newTestAnalyzer(t, srv.URL, 2)
	_, err := a.Analyze(context.Background(), "text", "en")
	if ReasonOf(err) != ReasonUnavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestHTTPAnalyzer_BackoffHonoursContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newTestAnalyzer(t, srv.URL, 3)
	a.retryBase = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.Analyze(ctx, "text", "en")
	if ReasonOf(err) != ReasonTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("backoff ignored context cancellation: %v", elapsed)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestHTTPAnalyzer_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		header     map[string]string
		wantReason Reason
	}{
		{"unauthorized", http.StatusUnauthorized, "", nil, ReasonUnauthorized},
		{"rate limited", http.StatusTooManyRequests, "", map[string]string{"Retry-After": "2"}, ReasonRateLimited},
		{"unavailable", http.StatusServiceUnavailable, "down", nil, ReasonUnavailable},
		{"bad request", http.StatusBadRequest, "bad", nil, ReasonBadResponse},
		{"malformed json", http.StatusOK, "{", nil, ReasonBadResponse},
		{"missing fields", http.StatusOK, `{"tone":0.1}`, nil, ReasonBadResponse},
		{"out of range", http.StatusOK, `{"tone":0,"misleading_claim_score":1.5,"clarity":1}`, nil, ReasonBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a := newTestAnalyzer(t, srv.URL, 0)
			_, err := a.Analyze(context.Background(), "text", "en")

			var aerr *AIServiceError
			if !errors.As(err, &aerr) {
				t.Fatalf("expected *AIServiceError, got %v", err)
			}
			if aerr.Reason != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, aerr.Reason)
			}
			if tt.wantReason == ReasonRateLimited && aerr.RetryAfter != 2*time.Second {
				t.Errorf("expected retry-after 2s, got %v", aerr.RetryAfter)
			}
		})
	}
}

func TestHTTPAnalyzer_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	a := newTestAnalyzer(t, srv.URL, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.Analyze(ctx, "text", "en")
	if ReasonOf(err) != ReasonTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("analysis should respect the context deadline, took %v", elapsed)
	}
}

func TestHTTPAnalyzer_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := newTestAnalyzer(t, srv.URL, 0)
	for i := 0; i < unhealthyAfter; i++ {
		if err := a.HealthCheck(context.Background()); err != nil {
			t.Fatalf("unexpected unhealthy after %d failures", i)
		}
		a.Analyze(context.Background(), "text", "en")
	}
	if err := a.HealthCheck(context.Background()); err == nil {
		t.Error("expected unhealthy after consecutive failures")
	}
}
