package audit

import (
	"context"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
)

// Action identifies what an audit entry records.
type Action string

const (
	ActionContentValidated  Action = "content_validated"
	ActionContentAutofixed  Action = "content_autofixed"
	ActionDeliveryEnqueued  Action = "delivery_enqueued"
	ActionDeliveryDelivered Action = "delivery_delivered"
	ActionDeliveryFailed    Action = "delivery_failed"
	ActionDeliveryRejected  Action = "delivery_rejected"
)

// Actions lists every known action.
var Actions = []Action{
	ActionContentValidated,
	ActionContentAutofixed,
	ActionDeliveryEnqueued,
	ActionDeliveryDelivered,
	ActionDeliveryFailed,
	ActionDeliveryRejected,
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Verdict reports whether the action records a compliance verdict.
func (a Action) Verdict() bool {
	return a == ActionContentValidated || a == ActionContentAutofixed
}

// Exportable reports whether entries with this action belong in regulatory
// exports. Enqueue events are operational and stay internal.
func (a Action) Exportable() bool {
	return a != ActionDeliveryEnqueued
}

// Entry is one immutable audit trail record. Content is referenced by hash only.
type Entry struct {
	ID        string    `json:"entry_id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`

	AdvisorID   string `json:"advisor_id"`
	ContentID   string `json:"content_id,omitempty"`
	DeliveryID  string `json:"delivery_id,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`

	// Verdict fields
	RiskScore            int                      `json:"risk_score"`
	ColorCode            string                   `json:"color_code,omitempty"`
	IsCompliant          bool                     `json:"is_compliant"`
	FallbackUsed         bool                     `json:"fallback_used"`
	ViolationTypes       []string                 `json:"violation_types,omitempty"`
	Stages               []compliance.StageResult `json:"stages,omitempty"`
	RegulatoryIdentifier string                   `json:"regulatory_identifier,omitempty"`
	ProcessingTime       time.Duration            `json:"processing_time"`

	// Delivery fields
	DeliveryStatus string `json:"delivery_status,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	Attempts       int    `json:"attempts,omitempty"`
	ErrorKind      string `json:"error_kind,omitempty"`
	Error          string `json:"error,omitempty"`

	RetentionDate time.Time `json:"retention_date"`
	Exportable    bool      `json:"exportable"`
	Flagged       bool      `json:"flagged"`
	FlagReason    string    `json:"flag_reason,omitempty"`
}

// Flag reasons.
const (
	FlagHighRisk     = "high_risk"
	FlagNonCompliant = "non_compliant"
)

// HighRisk reports whether a verdict entry needs expedited review, returning
// the reason. Delivery entries are never high risk.
func (e *Entry) HighRisk() (bool, string) {
	if !e.Action.Verdict() {
		return false, ""
	}
	if e.RiskScore > compliance.YellowMax {
		return true, FlagHighRisk
	}
	if !e.IsCompliant {
		return true, FlagNonCompliant
	}
	return false, ""
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.ViolationTypes != nil {
		c.ViolationTypes = append([]string(nil), e.ViolationTypes...)
	}
	if e.Stages != nil {
		c.Stages = append([]compliance.StageResult(nil), e.Stages...)
	}
	return &c
}

// Query filters audit entries. Zero-valued fields do not filter.
type Query struct {
	AdvisorID  string
	ContentID  string
	DeliveryID string
	Actions    []Action

	// StartTime and EndTime bound Timestamp (inclusive start, exclusive end).
	StartTime *time.Time
	EndTime   *time.Time

	Flagged        *bool
	MinRiskScore   *int
	ExportableOnly bool

	Limit  int
	Offset int

	// SortOrder is "asc" or "desc" by timestamp. Default: "desc".
	SortOrder string
}

// Sort orders.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// QueryResult is one page of query results.
type QueryResult struct {
	Entries []*Entry `json:"entries"`
	Total   int64    `json:"total"`
	HasMore bool     `json:"has_more"`
}

// Storage persists audit entries. Implementations are append-only: entries
// are never updated, and only PurgeExpired removes them.
type Storage interface {
	// Append writes a new entry. Appending an existing ID fails.
	Append(ctx context.Context, entry *Entry) error

	// Query returns entries matching q, ordered by timestamp.
	Query(ctx context.Context, q *Query) ([]*Entry, error)

	// Count returns the number of entries matching q, ignoring pagination.
	Count(ctx context.Context, q *Query) (int64, error)

	// GetByID returns a single entry or ErrNotFound.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// PurgeExpired deletes entries whose retention date is strictly before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Flagger receives entries flagged for expedited review as they are written.
type Flagger interface {
	Flag(ctx context.Context, entry *Entry)
}
