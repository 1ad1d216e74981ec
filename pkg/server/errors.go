package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
)

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Set for rejected content.
	RiskScore  *int                   `json:"risk_score,omitempty"`
	Violations []compliance.Violation `json:"violations,omitempty"`
}

// badRequest marks a client input error.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return &badRequest{msg: msg} }

// statusFor maps domain errors to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	var (
		br  *badRequest
		ve  validator.ValidationErrors
		vio *compliance.ViolationError
		qe  *audit.QueryError
		ee  *audit.ExportError
	)
	switch {
	case errors.As(err, &br), errors.As(err, &ve):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &vio):
		return http.StatusUnprocessableEntity, "content_rejected"
	case errors.Is(err, delivery.ErrNoTemplate):
		return http.StatusBadRequest, "no_template"
	case errors.Is(err, delivery.ErrJobNotFound), errors.Is(err, audit.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, delivery.ErrQueueClosed), errors.Is(err, audit.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.As(err, &qe), errors.As(err, &ee):
		return http.StatusBadRequest, "invalid_request"
	}

	switch delivery.KindOf(err) {
	case delivery.KindInvalidRecipient:
		return http.StatusBadRequest, string(delivery.KindInvalidRecipient)
	case delivery.KindQuotaExceeded:
		return http.StatusTooManyRequests, string(delivery.KindQuotaExceeded)
	case delivery.KindCircuitOpen:
		return http.StatusServiceUnavailable, string(delivery.KindCircuitOpen)
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError writes err as a JSON error body. Internal errors are logged by
// the caller and not exposed.
func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	body := errorBody{Code: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		body.Message = "An internal error occurred. Please try again later."
	}

	var vio *compliance.ViolationError
	if errors.As(err, &vio) {
		score := vio.RiskScore
		body.RiskScore = &score
		body.Violations = vio.Violations
	}
	if d := delivery.RetryAfterOf(err); d > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(d.Seconds())))
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
