package server

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/delivery"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/service"
)

// maxBodyBytes caps request bodies; a bulk delivery of 10,000 recipients
// fits comfortably.
const maxBodyBytes = 1 << 20

// ContentRequestDTO is the body of validate and autofix requests.
type ContentRequestDTO struct {
	ContentID         string            `json:"content_id" validate:"required,max=128"`
	AdvisorID         string            `json:"advisor_id" validate:"required,max=128"`
	AdvisorIdentifier string            `json:"advisor_identifier" validate:"omitempty,max=64"`
	Text              string            `json:"text" validate:"required,max=4096"`
	Language          string            `json:"language" validate:"omitempty,min=2,max=8"`
	Category          string            `json:"category" validate:"omitempty,max=64"`
	Metadata          map[string]string `json:"metadata"`
	Strict            bool              `json:"strict"`
}

func (d *ContentRequestDTO) item() *compliance.ContentItem {
	lang := d.Language
	if lang == "" {
		lang = "en"
	}
	return &compliance.ContentItem{
		ID:                d.ContentID,
		Text:              d.Text,
		Language:          lang,
		Category:          d.Category,
		AdvisorID:         d.AdvisorID,
		AdvisorIdentifier: d.AdvisorIdentifier,
		Metadata:          d.Metadata,
	}
}

// DeliveryRequestDTO is the body of a delivery submission.
type DeliveryRequestDTO struct {
	ContentRequestDTO

	Recipients     []string `json:"recipients" validate:"required,min=1,max=10000,dive,required,max=32"`
	UseCase        string   `json:"use_case" validate:"omitempty,max=64"`
	Priority       string   `json:"priority" validate:"omitempty,oneof=low normal high"`
	DelaySeconds   int      `json:"delay_seconds" validate:"gte=0,lte=86400"`
	IdempotencyKey string   `json:"idempotency_key" validate:"omitempty,max=128"`
}

func (d *DeliveryRequestDTO) submitRequest() service.SubmitRequest {
	priority := delivery.PriorityNormal
	if p, ok := delivery.ParsePriority(d.Priority); ok {
		priority = p
	}
	return service.SubmitRequest{
		Item:           d.item(),
		Recipients:     d.Recipients,
		UseCase:        d.UseCase,
		Priority:       priority,
		Delay:          time.Duration(d.DelaySeconds) * time.Second,
		IdempotencyKey: d.IdempotencyKey,
		Strict:         d.Strict,
	}
}

// AuditQueryDTO holds the query string of an audit search.
type AuditQueryDTO struct {
	AdvisorID    string   `validate:"omitempty,max=128"`
	ContentID    string   `validate:"omitempty,max=128"`
	DeliveryID   string   `validate:"omitempty,max=128"`
	Actions      []string `validate:"dive,required"`
	Start        string   `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	End          string   `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Flagged      string   `validate:"omitempty,oneof=true false"`
	MinRiskScore string   `validate:"omitempty,number"`
	Limit        int      `validate:"gte=0,lte=1000"`
	Offset       int      `validate:"gte=0"`
	Order        string   `validate:"omitempty,oneof=asc desc"`
}

func parseAuditQuery(v url.Values) (*AuditQueryDTO, error) {
	d := &AuditQueryDTO{
		AdvisorID:    v.Get("advisor_id"),
		ContentID:    v.Get("content_id"),
		DeliveryID:   v.Get("delivery_id"),
		Start:        v.Get("start"),
		End:          v.Get("end"),
		Flagged:      v.Get("flagged"),
		MinRiskScore: v.Get("min_risk_score"),
		Order:        v.Get("order"),
	}
	for _, a := range v["action"] {
		for _, part := range strings.Split(a, ",") {
			if part = strings.TrimSpace(part); part != "" {
				d.Actions = append(d.Actions, part)
			}
		}
	}
	var err error
	if d.Limit, err = intParam(v, "limit"); err != nil {
		return nil, err
	}
	if d.Offset, err = intParam(v, "offset"); err != nil {
		return nil, err
	}
	return d, nil
}

func intParam(v url.Values, name string) (int, error) {
	s := v.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errBadRequest(name + " must be an integer")
	}
	return n, nil
}

// query converts a validated DTO.
func (d *AuditQueryDTO) query() (audit.Query, error) {
	q := audit.Query{
		AdvisorID:  d.AdvisorID,
		ContentID:  d.ContentID,
		DeliveryID: d.DeliveryID,
		Limit:      d.Limit,
		Offset:     d.Offset,
		SortOrder:  d.Order,
	}
	for _, a := range d.Actions {
		action := audit.Action(a)
		if !action.Valid() {
			return q, errBadRequest("unknown action " + strconv.Quote(a))
		}
		q.Actions = append(q.Actions, action)
	}
	if d.Start != "" {
		t, _ := time.Parse(time.RFC3339, d.Start)
		q.StartTime = &t
	}
	if d.End != "" {
		t, _ := time.Parse(time.RFC3339, d.End)
		q.EndTime = &t
	}
	if d.Flagged != "" {
		flagged := d.Flagged == "true"
		q.Flagged = &flagged
	}
	if d.MinRiskScore != "" {
		n, err := strconv.Atoi(d.MinRiskScore)
		if err != nil {
			return q, errBadRequest("min_risk_score must be an integer")
		}
		q.MinRiskScore = &n
	}
	return q, nil
}

// ExportQueryDTO holds the query string of a compliance export.
type ExportQueryDTO struct {
	AdvisorID string `validate:"omitempty,max=128"`
	Start     string `validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	End       string `validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Format    string `validate:"omitempty,oneof=json csv JSON CSV"`
}
