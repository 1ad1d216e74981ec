package delivery

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies delivery failures.
type ErrorKind string

const (
	// KindInvalidRecipient fails fast without retry.
	KindInvalidRecipient ErrorKind = "invalid_recipient"

	// KindQuotaExceeded fails fast without retry. Bulk admissions are
	// rejected before any job exists.
	KindQuotaExceeded ErrorKind = "quota_exceeded"

	// KindCircuitOpen fails fast without a gateway call.
	KindCircuitOpen ErrorKind = "circuit_open"

	// KindGatewayRateLimited is retried with extra backoff.
	KindGatewayRateLimited ErrorKind = "gateway_rate_limited"

	// KindGatewayRejected is a definitive refusal and is not retried.
	KindGatewayRejected ErrorKind = "gateway_rejected"

	// KindNetworkError is retried on the standard backoff schedule.
	KindNetworkError ErrorKind = "network_error"
)

// Retryable reports whether the queue retries this kind.
func (k ErrorKind) Retryable() bool {
	return k == KindGatewayRateLimited || k == KindNetworkError
}

// Error is a classified delivery failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("delivery %s: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// NewError creates a classified error.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinels for errors.Is matching on kind.
var (
	ErrInvalidRecipient   = &Error{Kind: KindInvalidRecipient}
	ErrQuotaExceeded      = &Error{Kind: KindQuotaExceeded}
	ErrCircuitOpen        = &Error{Kind: KindCircuitOpen}
	ErrGatewayRateLimited = &Error{Kind: KindGatewayRateLimited}
	ErrGatewayRejected    = &Error{Kind: KindGatewayRejected}
	ErrNetwork            = &Error{Kind: KindNetworkError}
)

var (
	// ErrQueueClosed is returned after Shutdown.
	ErrQueueClosed = errors.New("delivery queue closed")

	// ErrJobNotFound is returned for unknown job IDs or idempotency keys.
	ErrJobNotFound = errors.New("delivery job not found")

	// ErrNoTemplate is returned when no approved template fits.
	ErrNoTemplate = errors.New("no approved template available")
)

// KindOf extracts the kind from a classified error. Unclassified errors are
// treated as network errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindNetworkError
}

// RetryAfterOf returns the gateway's requested delay, if any.
func RetryAfterOf(err error) time.Duration {
	var de *Error
	if errors.As(err, &de) {
		return de.RetryAfter
	}
	return 0
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
