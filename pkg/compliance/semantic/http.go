package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/metrics"
)

// unhealthyAfter is the number of consecutive failures after which the
// analyzer reports itself unhealthy.
const unhealthyAfter = 3

const (
	retryJitter      = 0.1
	maxRetryInterval = 2 * time.Second
)

type analyzeRequest struct {
	Model    string `json:"model,omitempty"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

type analyzeResponse struct {
	Tone                 *float64 `json:"tone"`
	MisleadingClaimScore *float64 `json:"misleading_claim_score"`
	Clarity              *float64 `json:"clarity"`
	Confidence           *float64 `json:"confidence"`
}

// HTTPAnalyzer calls an external reasoning service over JSON/HTTP.
type HTTPAnalyzer struct {
	cfg    config.SemanticConfig
	client *http.Client
	logger *slog.Logger

	// retryBase is the first retry delay; it roughly doubles per retry.
	retryBase time.Duration

	mu                  sync.Mutex
	consecutiveFailures int
	lastError           error
}

// NewHTTPAnalyzer creates an HTTP analyzer.
func NewHTTPAnalyzer(cfg config.SemanticConfig, logger *slog.Logger) (*HTTPAnalyzer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("semantic endpoint cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPAnalyzer{
		cfg:       cfg,
		client:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		logger:    logger.With("component", "semantic.http"),
		retryBase: 100 * time.Millisecond,
	}, nil
}

// Analyze implements Analyzer. 5xx responses and transport errors are
// retried up to MaxRetries times while ctx allows.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, text, language string) (*Scores, error) {
	body, err := json.Marshal(analyzeRequest{Model: a.cfg.Model, Text: text, Language: language})
	if err != nil {
		return nil, NewAIServiceError(ReasonBadResponse, 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	b := a.newBackOff()
	var lastErr *AIServiceError
	for attempt := 0; attempt <= max(a.cfg.MaxRetries, 0); attempt++ {
		if attempt > 0 {
			delay := b.NextBackOff()
			a.logger.Debug("retrying semantic analysis", "attempt", attempt, "backoff", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, a.fail(NewAIServiceError(ReasonTimeout, 0, ctx.Err()))
			case <-timer.C:
			}
		}

		scores, aerr, retry := a.do(ctx, body)
		if aerr == nil {
			a.succeed()
			return scores, nil
		}
		lastErr = aerr
		if !retry {
			break
		}
	}

	return nil, a.fail(lastErr)
}

func (a *HTTPAnalyzer) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.retryBase
	b.Multiplier = 2
	b.RandomizationFactor = retryJitter
	b.MaxInterval = maxRetryInterval
	b.Reset()
	return b
}

func (a *HTTPAnalyzer) do(ctx context.Context, body []byte) (*Scores, *AIServiceError, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewAIServiceError(ReasonUnavailable, 0, fmt.Errorf("failed to create request: %w", err)), false
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, NewAIServiceError(ReasonTimeout, 0, err), false
		}
		return nil, NewAIServiceError(ReasonUnavailable, 0, err), true
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, NewAIServiceError(ReasonUnavailable, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)), true
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewAIServiceError(ReasonUnauthorized, resp.StatusCode, nil), false
	case resp.StatusCode == http.StatusTooManyRequests:
		aerr := NewAIServiceError(ReasonRateLimited, resp.StatusCode, nil)
		aerr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, aerr, false
	case resp.StatusCode >= 500:
		return nil, NewAIServiceError(ReasonUnavailable, resp.StatusCode, errors.New(truncate(string(payload), 200))), true
	default:
		return nil, NewAIServiceError(ReasonBadResponse, resp.StatusCode, errors.New(truncate(string(payload), 200))), false
	}

	scores, err := decodeScores(payload)
	if err != nil {
		return nil, NewAIServiceError(ReasonBadResponse, resp.StatusCode, err), false
	}
	return scores, nil, false
}

func decodeScores(payload []byte) (*Scores, error) {
	var r analyzeResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if r.Tone == nil || r.MisleadingClaimScore == nil || r.Clarity == nil {
		return nil, errors.New("response is missing required scores")
	}

	s := &Scores{
		Tone:                 *r.Tone,
		MisleadingClaimScore: *r.MisleadingClaimScore,
		Clarity:              *r.Clarity,
		Confidence:           1,
	}
	if r.Confidence != nil {
		s.Confidence = *r.Confidence
	}

	if s.Tone < -1 || s.Tone > 1 {
		return nil, fmt.Errorf("tone %v out of range [-1,1]", s.Tone)
	}
	for name, v := range map[string]float64{
		"misleading_claim_score": s.MisleadingClaimScore,
		"clarity":                s.Clarity,
		"confidence":             s.Confidence,
	} {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%s %v out of range [0,1]", name, v)
		}
	}
	return s, nil
}

func (a *HTTPAnalyzer) succeed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveFailures = 0
	a.lastError = nil
}

func (a *HTTPAnalyzer) fail(err *AIServiceError) *AIServiceError {
	metrics.SemanticErrors.WithLabelValues(string(err.Reason)).Inc()

	a.mu.Lock()
	a.consecutiveFailures++
	failures := a.consecutiveFailures
	a.lastError = err
	a.mu.Unlock()

	if failures == unhealthyAfter {
		a.logger.Warn("semantic analyzer marked unhealthy", "consecutive_failures", failures, "error", err)
	}
	return err
}

// HealthCheck reports an error after repeated consecutive failures. It is
// registered as a non-critical readiness check.
func (a *HTTPAnalyzer) HealthCheck(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.consecutiveFailures >= unhealthyAfter {
		return fmt.Errorf("%d consecutive failures: %w", a.consecutiveFailures, a.lastError)
	}
	return nil
}

// Close releases idle connections.
func (a *HTTPAnalyzer) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// parseRetryAfter parses a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
