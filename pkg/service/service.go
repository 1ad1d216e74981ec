package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/trail"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/pipeline"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/telemetry/logging"
)

// DefaultUseCase is the template use case when a request names none.
const DefaultUseCase = "content_share"

// Deps are the components the service wires together. All are required.
// The pipeline is expected to record verdicts into the same trail.
type Deps struct {
	Pipeline  *pipeline.Pipeline
	Trail     *trail.Trail
	Queue     *delivery.Queue
	Templates delivery.TemplateProvider
	Logger    *slog.Logger
}

// Service validates advisor content and delivers compliant content. Every
// verdict and every delivery outcome lands in the audit trail.
type Service struct {
	pipeline  *pipeline.Pipeline
	trail     *trail.Trail
	queue     *delivery.Queue
	templates delivery.TemplateProvider
	logger    *slog.Logger
}

// New creates a service and subscribes it to delivery results.
func New(deps Deps) (*Service, error) {
	switch {
	case deps.Pipeline == nil:
		return nil, errors.New("service requires a pipeline")
	case deps.Trail == nil:
		return nil, errors.New("service requires an audit trail")
	case deps.Queue == nil:
		return nil, errors.New("service requires a delivery queue")
	case deps.Templates == nil:
		return nil, errors.New("service requires a template provider")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Service{
		pipeline:  deps.Pipeline,
		trail:     deps.Trail,
		queue:     deps.Queue,
		templates: deps.Templates,
		logger:    deps.Logger.With("component", "service"),
	}
	s.queue.OnResult(s.recordResult)
	return s, nil
}

// Start starts the delivery queue.
func (s *Service) Start(ctx context.Context) error {
	return s.queue.Start(ctx)
}

// Shutdown stops the queue, then drains and closes the audit trail so
// outcomes of in-flight deliveries are still recorded.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.queue.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.trail.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audit trail: %w", err))
	}
	return errors.Join(errs...)
}

// Validate runs item through the compliance pipeline. The verdict is
// recorded in the audit trail before it is returned.
func (s *Service) Validate(ctx context.Context, item *compliance.ContentItem, opts pipeline.Options) (*compliance.ValidationResult, error) {
	return s.pipeline.Validate(ctx, item, opts)
}

// AutoFix validates item and, when it only has fixable violations,
// rewrites and revalidates it.
func (s *Service) AutoFix(ctx context.Context, item *compliance.ContentItem, opts pipeline.Options) (*pipeline.FixResult, error) {
	return s.pipeline.AutoFixAndRevalidate(ctx, item, opts)
}

// SubmitRequest asks for content to be validated and delivered.
type SubmitRequest struct {
	Item       *compliance.ContentItem
	Recipients []string

	// UseCase selects the approved template family. Default: DefaultUseCase.
	UseCase string

	Priority delivery.Priority
	Delay    time.Duration

	// IdempotencyKey deduplicates the whole submission. Without it each
	// message is keyed by content, content hash and recipient.
	IdempotencyKey string

	Strict bool
}

// Submission is the outcome of an accepted submission.
type Submission struct {
	Result   *compliance.ValidationResult `json:"result"`
	Template string                       `json:"template"`
	BatchID  string                       `json:"batch_id,omitempty"`

	// JobIDs has one entry per recipient, empty for rejected recipients.
	JobIDs     []string                 `json:"job_ids"`
	Duplicates int                      `json:"duplicates"`
	Rejected   []delivery.BulkRejection `json:"rejected,omitempty"`
}

// Submit validates the content and, only if it is compliant, enqueues one
// message per recipient. Non-compliant content returns a
// *compliance.ViolationError and nothing is enqueued.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	if req.Item == nil {
		return nil, errors.New("content item is required")
	}
	if len(req.Recipients) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	ctx = logging.WithContentID(logging.WithAdvisorID(ctx, req.Item.AdvisorID), req.Item.ID)

	result, err := s.pipeline.Validate(ctx, req.Item, pipeline.Options{Strict: req.Strict})
	if err != nil {
		return nil, err
	}
	if !result.IsCompliant || result.ContentID != req.Item.ID {
		s.recordRejected(ctx, req.Item, result)
		return nil, compliance.NewViolationError(result)
	}

	useCase := req.UseCase
	if useCase == "" {
		useCase = DefaultUseCase
	}
	tmpl, err := s.templates.GetBestTemplate(ctx, useCase, req.Item.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to select template for %q: %w", useCase, err)
	}

	msgs := buildMessages(req, result, tmpl)
	opts := delivery.EnqueueOptions{
		Delay:          req.Delay,
		Priority:       req.Priority,
		IdempotencyKey: req.IdempotencyKey,
	}

	sub := &Submission{Result: result, Template: tmpl.Name}
	if len(msgs) == 1 {
		id, err := s.queue.Enqueue(ctx, msgs[0], opts)
		if err != nil {
			s.recordRefused(ctx, msgs, result, err)
			return nil, err
		}
		sub.JobIDs = []string{id}
	} else {
		res, err := s.queue.BulkEnqueue(ctx, msgs, opts)
		if err != nil {
			s.recordRefused(ctx, msgs, result, err)
			return nil, err
		}
		sub.BatchID = res.BatchID
		sub.JobIDs = res.JobIDs
		sub.Duplicates = res.Duplicates
		sub.Rejected = res.Rejected
	}

	for _, r := range sub.Rejected {
		s.recordAdmission(ctx, msgs[r.Index], result, r.Kind, r.Error)
	}

	for i, id := range sub.JobIDs {
		if id == "" {
			continue
		}
		s.record(ctx, &audit.Entry{
			Action:         audit.ActionDeliveryEnqueued,
			AdvisorID:      req.Item.AdvisorID,
			ContentID:      req.Item.ID,
			DeliveryID:     msgs[i].Metadata.DeliveryID,
			ContentHash:    result.ContentHash,
			DeliveryStatus: "enqueued",
		})
	}

	s.logger.InfoContext(ctx, "content submitted for delivery",
		"template", tmpl.Name,
		"recipients", len(req.Recipients),
		"batch_id", sub.BatchID,
		"duplicates", sub.Duplicates,
		"rejected", len(sub.Rejected),
	)
	return sub, nil
}

// buildMessages turns a compliant verdict into one message per recipient.
// It must only be called with a compliant result for req.Item.
func buildMessages(req SubmitRequest, result *compliance.ValidationResult, tmpl *delivery.Template) []*delivery.Message {
	msgs := make([]*delivery.Message, len(req.Recipients))
	for i, to := range req.Recipients {
		msgs[i] = &delivery.Message{
			Recipient: to,
			Template: delivery.Template{
				Name:     tmpl.Name,
				Language: tmpl.Language,
				Components: []delivery.Component{{
					Type:       "body",
					Parameters: []delivery.Parameter{{Type: "text", Text: req.Item.Text}},
				}},
			},
			Metadata: delivery.Metadata{
				AdvisorID:  req.Item.AdvisorID,
				ContentID:  req.Item.ID,
				DeliveryID: DeliveryID(req.Item.ID, result.ContentHash, to),
				Priority:   req.Priority,
			},
		}
	}
	return msgs
}

// DeliveryID derives a stable delivery ID, so resubmitting the same content
// to the same recipient is recognised as a duplicate.
func DeliveryID(contentID, contentHash, recipient string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(contentID+"|"+contentHash+"|"+recipient)).String()
}

// Stats returns the delivery queue snapshot.
func (s *Service) Stats(ctx context.Context) (*delivery.Stats, error) {
	return s.queue.Stats(ctx)
}

// Pause stops delivery dispatch.
func (s *Service) Pause() { s.queue.Pause() }

// Resume restarts delivery dispatch.
func (s *Service) Resume() { s.queue.Resume() }

// Job returns a delivery job.
func (s *Service) Job(ctx context.Context, id string) (*delivery.Job, error) {
	return s.queue.Job(ctx, id)
}

// Audit exposes the audit trail for queries and exports.
func (s *Service) Audit() *trail.Trail {
	return s.trail
}

// recordResult writes a terminal delivery outcome to the audit trail.
func (s *Service) recordResult(job *delivery.Job, r delivery.Result) {
	action := audit.ActionDeliveryDelivered
	status := "delivered"
	if !r.Success {
		action = audit.ActionDeliveryFailed
		status = "failed"
		if r.Kind == delivery.KindGatewayRejected || r.Kind == delivery.KindInvalidRecipient {
			action = audit.ActionDeliveryRejected
			status = "rejected"
		}
	}

	s.record(context.Background(), &audit.Entry{
		Timestamp:      r.Timestamp,
		Action:         action,
		AdvisorID:      job.Message.Metadata.AdvisorID,
		ContentID:      job.Message.Metadata.ContentID,
		DeliveryID:     job.Message.Metadata.DeliveryID,
		DeliveryStatus: status,
		MessageID:      r.MessageID,
		Attempts:       r.Attempts,
		ErrorKind:      string(r.Kind),
		Error:          r.Error,
	})
}

func (s *Service) recordRejected(ctx context.Context, item *compliance.ContentItem, result *compliance.ValidationResult) {
	s.record(ctx, &audit.Entry{
		Action:         audit.ActionDeliveryRejected,
		AdvisorID:      item.AdvisorID,
		ContentID:      item.ID,
		ContentHash:    result.ContentHash,
		RiskScore:      result.RiskScore,
		ColorCode:      string(result.ColorCode),
		ViolationTypes: compliance.ViolationTypes(result.Violations),
		DeliveryStatus: "blocked",
	})
}

// recordRefused audits every message of a submission the queue refused as a
// whole, such as on quota exhaustion or an open circuit.
func (s *Service) recordRefused(ctx context.Context, msgs []*delivery.Message, result *compliance.ValidationResult, err error) {
	kind := delivery.KindOf(err)
	s.logger.WarnContext(ctx, "delivery admission refused",
		"kind", kind,
		"messages", len(msgs),
		"error", err,
	)
	for _, m := range msgs {
		s.recordAdmission(ctx, m, result, kind, err.Error())
	}
}

// recordAdmission audits one message refused before it became a job.
func (s *Service) recordAdmission(ctx context.Context, msg *delivery.Message, result *compliance.ValidationResult, kind delivery.ErrorKind, reason string) {
	s.record(ctx, &audit.Entry{
		Action:         audit.ActionDeliveryRejected,
		AdvisorID:      msg.Metadata.AdvisorID,
		ContentID:      msg.Metadata.ContentID,
		DeliveryID:     msg.Metadata.DeliveryID,
		ContentHash:    result.ContentHash,
		DeliveryStatus: string(kind),
		ErrorKind:      string(kind),
		Error:          reason,
	})
}

// record writes delivery entries through the async path; a dropped entry is
// logged by the trail and does not fail the caller.
func (s *Service) record(ctx context.Context, e *audit.Entry) {
	if _, err := s.trail.RecordAsync(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to record delivery audit entry",
			"action", e.Action,
			"delivery_id", e.DeliveryID,
			"error", err,
		)
	}
}
