package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/storage"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/trail"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/pipeline"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/rules"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/semantic"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/service"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/health"
)

const compliantText = "Mutual fund investments are subject to market risks. EUIN: E123456"

type okGateway struct {
	phones *delivery.PhoneValidator
	mu     sync.Mutex
	n      int
}

func (g *okGateway) SendTemplate(ctx context.Context, msg *delivery.Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("wamid.%d", g.n), nil
}

func (g *okGateway) ValidateRecipientFormat(recipient string) (string, error) {
	return g.phones.Normalize(recipient)
}

func (g *okGateway) GetMessageStatus(ctx context.Context, id string) (delivery.MessageStatus, error) {
	return delivery.StatusSent, nil
}

func newTestService(t *testing.T) *service.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tr := trail.New(storage.NewMemoryStorage(), trail.DefaultConfig(), logger)
	engine, err := rules.NewEngine(nil)
	require.NoError(t, err)
	p := pipeline.New(engine, semantic.Disabled(), pipeline.DefaultConfig(), logger, pipeline.WithRecorder(tr))

	cfg := delivery.DefaultConfig()
	cfg.RatePerSecond = 0
	cfg.Location = time.UTC
	cfg.SenderID = "sender"
	cfg.RolloverSchedule = ""
	q, err := delivery.New(cfg, delivery.Deps{
		Gateway: &okGateway{phones: delivery.NewPhoneValidator("IN")},
		Logger:  logger,
	})
	require.NoError(t, err)

	svc, err := service.New(service.Deps{
		Pipeline: p,
		Trail:    tr,
		Queue:    q,
		Templates: delivery.NewStaticTemplateProvider([]config.TemplateConfig{
			{UseCase: service.DefaultUseCase, Name: "content_share_v1", Language: "en", HealthScore: 90},
		}),
		Logger: logger,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc
}

func newTestHandler(t *testing.T, cfg config.ServerConfig, opts ...Option) (http.Handler, *service.Service) {
	t.Helper()
	svc := newTestService(t)
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(cfg, svc, opts...).Handler(), svc
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func contentBody(id, text string) map[string]any {
	return map[string]any{"content_id": id, "advisor_id": "advisor-1", "text": text}
}

func TestValidateContent(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/v1/content/validate", contentBody("c1", compliantText))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeBody[compliance.ValidationResult](t, rec)
	assert.True(t, result.IsCompliant)
	assert.Equal(t, compliance.ColorGreen, result.ColorCode)
	assert.Len(t, result.Stages, 3)
}

func TestValidateContent_RejectsInvalidBody(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})

	tests := []struct {
		name string
		body any
	}{
		{"missing text", map[string]any{"content_id": "c1", "advisor_id": "a1"}},
		{"missing advisor", map[string]any{"content_id": "c1", "text": compliantText}},
		{"unknown field", map[string]any{"content_id": "c1", "advisor_id": "a1", "text": "x", "model": "gpt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/content/validate", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decodeBody[errorResponse](t, rec).Error.Code)
		})
	}
}

func TestAutofixContent(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/v1/content/autofix",
		contentBody("c1", "Guaranteed returns of 20% annually! No risk investment!"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	fix := decodeBody[pipeline.FixResult](t, rec)
	assert.False(t, fix.Applied)
	assert.Nil(t, fix.Fixed)
}

func TestSubmitDelivery(t *testing.T) {
	h, svc := newTestHandler(t, config.ServerConfig{})

	body := contentBody("c1", compliantText)
	body["recipients"] = []string{"+918123456701", "+918123456702"}
	body["priority"] = "high"

	rec := do(t, h, http.MethodPost, "/v1/deliveries", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	sub := decodeBody[service.Submission](t, rec)
	require.Len(t, sub.JobIDs, 2)
	assert.NotEmpty(t, sub.BatchID)

	require.Eventually(t, func() bool {
		stats, err := svc.Stats(context.Background())
		return err == nil && stats.Completed == 2
	}, 5*time.Second, 5*time.Millisecond)

	rec = do(t, h, http.MethodGet, "/v1/deliveries/"+sub.JobIDs[0], nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, delivery.JobDelivered, decodeBody[delivery.Job](t, rec).State)

	rec = do(t, h, http.MethodGet, "/v1/deliveries/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitDelivery_RejectsNonCompliantContent(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})

	body := contentBody("c1", "Guaranteed returns of 20% annually! No risk investment!")
	body["recipients"] = []string{"+918123456701"}

	rec := do(t, h, http.MethodPost, "/v1/deliveries", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "content_rejected", resp.Error.Code)
	require.NotNil(t, resp.Error.RiskScore)
	assert.Equal(t, 100, *resp.Error.RiskScore)
	assert.NotEmpty(t, resp.Error.Violations)
}

func TestSubmitDelivery_ValidatesRecipients(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})

	body := contentBody("c1", compliantText)
	rec := do(t, h, http.MethodPost, "/v1/deliveries", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body["recipients"] = []string{"12345"}
	rec = do(t, h, http.MethodPost, "/v1/deliveries", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(delivery.KindInvalidRecipient), decodeBody[errorResponse](t, rec).Error.Code)

	body["recipients"] = []string{"+918123456701"}
	body["priority"] = "urgent"
	rec = do(t, h, http.MethodPost, "/v1/deliveries", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPauseAndResume(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})

	rec := do(t, h, http.MethodPost, "/v1/deliveries/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/v1/deliveries/stats", nil)
	assert.True(t, decodeBody[delivery.Stats](t, rec).Paused)

	rec = do(t, h, http.MethodPost, "/v1/deliveries/resume", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/v1/deliveries/stats", nil)
	assert.False(t, decodeBody[delivery.Stats](t, rec).Paused)
}

func TestQueryAudit(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})

	do(t, h, http.MethodPost, "/v1/content/validate", contentBody("c1", compliantText))
	do(t, h, http.MethodPost, "/v1/content/validate",
		contentBody("c2", "Guaranteed returns of 20% annually! No risk investment!"))

	rec := do(t, h, http.MethodGet, "/v1/audit?advisor_id=advisor-1&action=content_validated", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[audit.QueryResult](t, rec)
	assert.Equal(t, int64(2), res.Total)

	rec = do(t, h, http.MethodGet, "/v1/audit?flagged=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeBody[audit.QueryResult](t, rec)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "c2", res.Entries[0].ContentID)

	rec = do(t, h, http.MethodGet, "/v1/audit/entries/"+res.Entries[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, res.Entries[0].ID, decodeBody[audit.Entry](t, rec).ID)
}

func TestQueryAudit_RejectsBadParameters(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})

	for _, target := range []string{
		"/v1/audit?action=deleted",
		"/v1/audit?limit=5000",
		"/v1/audit?limit=ten",
		"/v1/audit?start=yesterday",
		"/v1/audit?order=sideways",
	} {
		rec := do(t, h, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestExportAudit(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})
	do(t, h, http.MethodPost, "/v1/content/validate", contentBody("c1", compliantText))

	start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	rec := do(t, h, http.MethodGet, "/v1/audit/export?format=csv&start="+start+"&end="+end, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Len(t, rec.Header().Get("X-Export-Checksum"), 64)
	assert.Equal(t, "1", rec.Header().Get("X-Export-Record-Count"))
	assert.Contains(t, rec.Body.String(), "c1")

	rec = do(t, h, http.MethodGet, "/v1/audit/export?start="+start, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/audit/export?start="+end+"&end="+start, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/audit/export?format=xml&start="+start+"&end="+end, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestID(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{})

	rec := do(t, h, http.MethodGet, "/v1/deliveries/stats", nil)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/v1/deliveries/stats", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestAdvisorRateLimit(t *testing.T) {
	cfg := config.ServerConfig{RateLimit: config.IngressRateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}}
	h, _ := newTestHandler(t, cfg, WithHealth(health.New(time.Second), "/health", "/ready"))

	get := func(advisor, target string) int {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set(AdvisorHeader, advisor)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("a1", "/v1/deliveries/stats"))
	assert.Equal(t, http.StatusTooManyRequests, get("a1", "/v1/deliveries/stats"))
	assert.Equal(t, http.StatusOK, get("a2", "/v1/deliveries/stats"))

	// probes are not limited
	assert.Equal(t, http.StatusOK, get("a1", "/health"))
	assert.Equal(t, http.StatusOK, get("a1", "/health"))
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := recoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestMetricsAndVersion(t *testing.T) {
	h, _ := newTestHandler(t, config.ServerConfig{}, WithMetrics("/metrics"), WithVersion("1.2.3", "abc", "now"))

	do(t, h, http.MethodGet, "/v1/deliveries/stats", nil)
	rec := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `jarvish_http_requests_total{code="200",route="GET /v1/deliveries/stats"}`)

	rec = do(t, h, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "1.2.3"))
}

func TestServer_StartAndShutdown(t *testing.T) {
	svc := newTestService(t)
	srv := New(config.ServerConfig{ListenAddress: "127.0.0.1:0", ShutdownTimeout: time.Second}, svc,
		WithHealth(health.New(time.Second), "/health", "/ready"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, srv.IsRunning, 2*time.Second, 5*time.Millisecond)
	resp, err := http.Get("http://" + srv.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.False(t, srv.IsRunning())
	assert.NoError(t, srv.Shutdown(context.Background()))
}
