package delivery

import (
	"time"
)

// Priority orders jobs in the queue. Higher values dispatch first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

// ParsePriority maps "low", "normal" and "high" to a Priority.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "low":
		return PriorityLow, true
	case "", "normal":
		return PriorityNormal, true
	case "high":
		return PriorityHigh, true
	default:
		return 0, false
	}
}

// Parameter is a template variable.
type Parameter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Link string `json:"link,omitempty"`
}

// Component is a section of a template (header, body, button).
type Component struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Template is an approved gateway template.
type Template struct {
	Name       string      `json:"name"`
	Language   string      `json:"language"`
	Components []Component `json:"components,omitempty"`
}

// Metadata ties a message back to the content it carries.
type Metadata struct {
	AdvisorID  string   `json:"advisor_id"`
	ContentID  string   `json:"content_id"`
	DeliveryID string   `json:"delivery_id,omitempty"`
	Priority   Priority `json:"priority,omitempty"`
}

// Message is a delivery request for one recipient.
type Message struct {
	Recipient string   `json:"recipient"`
	Template  Template `json:"template"`
	Metadata  Metadata `json:"metadata"`
}

// EnqueueOptions adjust admission of a message or batch.
type EnqueueOptions struct {
	// Delay postpones the first dispatch.
	Delay time.Duration

	// Priority overrides the message priority when set.
	Priority Priority

	// IdempotencyKey deduplicates admissions. For bulk calls it is a batch
	// key and each message gets "<key>:<index>".
	IdempotencyKey string
}

// JobState is the lifecycle state of a job.
type JobState string

const (
	JobQueued      JobState = "queued"
	JobDelayed     JobState = "delayed"
	JobDispatching JobState = "dispatching"
	JobRetrying    JobState = "retrying"
	JobDelivered   JobState = "delivered"
	JobFailed      JobState = "failed"
)

// JobStates lists every state.
var JobStates = []JobState{JobQueued, JobDelayed, JobDispatching, JobRetrying, JobDelivered, JobFailed}

// Terminal reports whether no further work happens in this state.
func (s JobState) Terminal() bool {
	return s == JobDelivered || s == JobFailed
}

// Job is a message owned by the queue until it reaches a terminal state.
type Job struct {
	ID             string    `json:"id"`
	BatchID        string    `json:"batch_id,omitempty"`
	Message        Message   `json:"message"`
	State          JobState  `json:"state"`
	Priority       Priority  `json:"priority"`
	Attempts       int       `json:"attempts"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	QuotaKey       string    `json:"quota_key"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorKind  ErrorKind `json:"last_error_kind,omitempty"`
	Result         *Result   `json:"result,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	NextAttemptAt  time.Time `json:"next_attempt_at,omitempty"`

	seq uint64
}

// Clone returns a copy safe to hand to callers.
func (j *Job) Clone() *Job {
	c := *j
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	if j.Message.Template.Components != nil {
		c.Message.Template.Components = append([]Component(nil), j.Message.Template.Components...)
	}
	return &c
}

// Result is the terminal outcome of a job.
type Result struct {
	JobID     string    `json:"job_id"`
	Success   bool      `json:"success"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Kind      ErrorKind `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
}

// BulkRejection reports a message refused at admission.
type BulkRejection struct {
	Index int       `json:"index"`
	Kind  ErrorKind `json:"kind"`
	Error string    `json:"error"`
}

// BulkResult describes a bulk admission.
type BulkResult struct {
	BatchID string `json:"batch_id"`

	// JobIDs has one entry per input message, empty for rejected ones.
	JobIDs []string `json:"job_ids"`

	// Duplicates counts messages that matched an existing idempotency key.
	Duplicates int `json:"duplicates"`

	Rejected []BulkRejection `json:"rejected,omitempty"`
}

// Accepted returns the number of newly admitted jobs.
func (r *BulkResult) Accepted() int {
	n := 0
	for _, id := range r.JobIDs {
		if id != "" {
			n++
		}
	}
	return n - r.Duplicates
}

// Stats is a snapshot of the queue.
type Stats struct {
	Waiting   int   `json:"waiting"`
	Active    int   `json:"active"`
	Delayed   int   `json:"delayed"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`

	// States counts live jobs per state.
	States map[JobState]int `json:"states"`

	QuotaKey       string `json:"quota_key"`
	QuotaUsed      int64  `json:"quota_used"`
	QuotaLimit     int64  `json:"quota_limit"`
	QuotaRemaining int64  `json:"quota_remaining"`

	CircuitOpen bool            `json:"circuit_open"`
	Breaker     BreakerSnapshot `json:"breaker"`

	Paused  bool `json:"paused"`
	Running bool `json:"running"`
	Workers int  `json:"workers"`
}
