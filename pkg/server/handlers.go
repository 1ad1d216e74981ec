package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/export"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/trail"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/pipeline"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/service"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/logging"
)

// handlers serves the /v1 API on top of the service.
type handlers struct {
	svc      *service.Service
	validate *validator.Validate
	logger   *slog.Logger
}

func newHandlers(svc *service.Service, logger *slog.Logger) *handlers {
	return &handlers{
		svc:      svc,
		validate: validator.New(),
		logger:   logger.With("component", "api"),
	}
}

// decode reads and validates a JSON body into dst.
func (h *handlers) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadRequest("invalid request body: " + err.Error())
	}
	return h.validate.StructCtx(r.Context(), dst)
}

// fail writes err and logs it when it is not the client's fault.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), msg, "error", err, "code", code)
	} else {
		h.logger.DebugContext(r.Context(), msg, "error", err, "code", code)
	}
	writeError(w, err)
}

func (h *handlers) validateContent(w http.ResponseWriter, r *http.Request) {
	var dto ContentRequestDTO
	if err := h.decode(r, &dto); err != nil {
		h.fail(w, r, "invalid validate request", err)
		return
	}
	ctx := logging.WithContentID(logging.WithAdvisorID(r.Context(), dto.AdvisorID), dto.ContentID)

	result, err := h.svc.Validate(ctx, dto.item(), pipeline.Options{Strict: dto.Strict})
	if err != nil {
		h.fail(w, r, "validation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) autofixContent(w http.ResponseWriter, r *http.Request) {
	var dto ContentRequestDTO
	if err := h.decode(r, &dto); err != nil {
		h.fail(w, r, "invalid autofix request", err)
		return
	}
	ctx := logging.WithContentID(logging.WithAdvisorID(r.Context(), dto.AdvisorID), dto.ContentID)

	fix, err := h.svc.AutoFix(ctx, dto.item(), pipeline.Options{Strict: dto.Strict})
	if err != nil {
		h.fail(w, r, "autofix failed", err)
		return
	}
	writeJSON(w, http.StatusOK, fix)
}

func (h *handlers) submitDelivery(w http.ResponseWriter, r *http.Request) {
	var dto DeliveryRequestDTO
	if err := h.decode(r, &dto); err != nil {
		h.fail(w, r, "invalid delivery request", err)
		return
	}

	sub, err := h.svc.Submit(r.Context(), dto.submitRequest())
	if err != nil {
		h.fail(w, r, "delivery submission failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, sub)
}

func (h *handlers) deliveryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "failed to read delivery stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) deliveryJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "failed to read delivery job", err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *handlers) pauseDeliveries(w http.ResponseWriter, r *http.Request) {
	h.svc.Pause()
	h.logger.InfoContext(r.Context(), "delivery dispatch paused")
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (h *handlers) resumeDeliveries(w http.ResponseWriter, r *http.Request) {
	h.svc.Resume()
	h.logger.InfoContext(r.Context(), "delivery dispatch resumed")
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (h *handlers) queryAudit(w http.ResponseWriter, r *http.Request) {
	dto, err := parseAuditQuery(r.URL.Query())
	if err == nil {
		err = h.validate.StructCtx(r.Context(), dto)
	}
	if err != nil {
		h.fail(w, r, "invalid audit query", err)
		return
	}
	q, err := dto.query()
	if err != nil {
		h.fail(w, r, "invalid audit query", err)
		return
	}

	res, err := h.svc.Audit().Query(r.Context(), q)
	if err != nil {
		h.fail(w, r, "audit query failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) auditEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Audit().Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "failed to read audit entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *handlers) exportAudit(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	dto := ExportQueryDTO{
		AdvisorID: v.Get("advisor_id"),
		Start:     v.Get("start"),
		End:       v.Get("end"),
		Format:    v.Get("format"),
	}
	if err := h.validate.StructCtx(r.Context(), dto); err != nil {
		h.fail(w, r, "invalid export request", err)
		return
	}

	req := trail.ExportRequest{AdvisorID: dto.AdvisorID, Format: export.FormatJSON}
	req.Start, _ = time.Parse(time.RFC3339, dto.Start)
	req.End, _ = time.Parse(time.RFC3339, dto.End)
	if dto.Format != "" {
		f, err := export.ParseFormat(dto.Format)
		if err != nil {
			h.fail(w, r, "invalid export request", errBadRequest(err.Error()))
			return
		}
		req.Format = f
	}
	if !req.Start.Before(req.End) {
		h.fail(w, r, "invalid export request", errBadRequest("start must be before end"))
		return
	}

	exp, err := h.svc.Audit().ExportForCompliance(r.Context(), req)
	if err != nil {
		h.fail(w, r, "compliance export failed", err)
		return
	}

	contentType := "application/json"
	if exp.Format == export.FormatCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="audit-%s.%s"`,
		exp.GeneratedAt.UTC().Format("20060102T150405Z"), exp.Format))
	w.Header().Set("X-Export-Checksum", exp.Checksum)
	w.Header().Set("X-Export-Record-Count", strconv.Itoa(exp.RecordCount))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(exp.Data); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		h.logger.WarnContext(r.Context(), "failed to write export", "error", err)
	}
}
