package semantic

import (
	"errors"
	"fmt"
	"time"
)

// Reason classifies why the semantic analyzer failed.
type Reason string

const (
	ReasonTimeout      Reason = "timeout"
	ReasonUnavailable  Reason = "unavailable"
	ReasonBadResponse  Reason = "bad_response"
	ReasonRateLimited  Reason = "rate_limited"
	ReasonUnauthorized Reason = "unauthorized"
	ReasonDisabled     Reason = "disabled"
)

// AIServiceError is returned for every analyzer failure. The pipeline
// treats it as a signal to fall back to a rules-only verdict.
type AIServiceError struct {
	// Reason classifies the failure.
	Reason Reason

	// StatusCode is the HTTP status code (0 if not applicable).
	StatusCode int

	// RetryAfter is the service's requested backoff on rate limiting.
	RetryAfter time.Duration

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *AIServiceError) Error() string {
	msg := fmt.Sprintf("semantic analysis failed: %s", e.Reason)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for error chain support.
func (e *AIServiceError) Unwrap() error {
	return e.Cause
}

// NewAIServiceError creates an AIServiceError.
func NewAIServiceError(reason Reason, statusCode int, cause error) *AIServiceError {
	return &AIServiceError{Reason: reason, StatusCode: statusCode, Cause: cause}
}

// IsAIServiceError reports whether err is, or wraps, an AIServiceError.
func IsAIServiceError(err error) bool {
	var aerr *AIServiceError
	return errors.As(err, &aerr)
}

// ReasonOf returns the failure reason of err, or "" when err is not an
// AIServiceError.
func ReasonOf(err error) Reason {
	var aerr *AIServiceError
	if errors.As(err, &aerr) {
		return aerr.Reason
	}
	return ""
}
