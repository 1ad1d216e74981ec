package compliance

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ContentItem is a piece of generated promotional content submitted for
// validation. It is immutable once created.
type ContentItem struct {
	ID                string            `json:"id" validate:"required"`
	Text              string            `json:"text" validate:"required"`
	Language          string            `json:"language"`
	Category          string            `json:"category,omitempty"`
	AdvisorID         string            `json:"advisor_id" validate:"required"`
	AdvisorIdentifier string            `json:"advisor_identifier,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Severity ranks a violation.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Violation types reported by the rule engine.
const (
	ViolationProhibitedTerm    = "prohibited_term"
	ViolationSoftTerm          = "soft_term"
	ViolationMissingDisclaimer = "missing_disclaimer"
	ViolationMissingIdentifier = "missing_identifier"
	ViolationNotEducational    = "not_educational"
	ViolationMisleadingClaim   = "misleading_claim"
)

// Violation is a single compliance finding.
type Violation struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Term     string   `json:"term,omitempty"`
	Message  string   `json:"message,omitempty"`
	Fixable  bool     `json:"fixable"`
}

// IsCritical reports whether the violation blocks content outright.
func (v Violation) IsCritical() bool {
	return v.Severity == SeverityCritical
}

// HasCritical reports whether any violation in vs is critical.
func HasCritical(vs []Violation) bool {
	for _, v := range vs {
		if v.IsCritical() {
			return true
		}
	}
	return false
}

// ViolationTypes returns the distinct violation types in order of first appearance.
func ViolationTypes(vs []Violation) []string {
	seen := make(map[string]bool, len(vs))
	types := make([]string, 0, len(vs))
	for _, v := range vs {
		if seen[v.Type] {
			continue
		}
		seen[v.Type] = true
		types = append(types, v.Type)
	}
	return types
}

// StageName identifies a pipeline stage.
type StageName string

const (
	StageRuleCheck     StageName = "rule_check"
	StageSemanticCheck StageName = "semantic_check"
	StageAggregate     StageName = "aggregate"
)

// Stages lists every pipeline stage in execution order.
var Stages = []StageName{StageRuleCheck, StageSemanticCheck, StageAggregate}

// StageResult records what a pipeline stage did. Skipped stages are still
// reported so the audit trail can reconstruct exactly what ran.
type StageResult struct {
	Name     StageName     `json:"name"`
	Passed   bool          `json:"passed"`
	Skipped  bool          `json:"skipped"`
	Details  string        `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ColorCode is the traffic-light rendering of a risk score.
type ColorCode string

const (
	ColorGreen  ColorCode = "green"
	ColorYellow ColorCode = "yellow"
	ColorRed    ColorCode = "red"
)

// Risk score thresholds.
const (
	GreenMax  = 30
	YellowMax = 70
	MaxRisk   = 100
)

// ColorFor maps a risk score to its colour: green <= 30, yellow 31-70, red > 70.
func ColorFor(score int) ColorCode {
	switch {
	case score <= GreenMax:
		return ColorGreen
	case score <= YellowMax:
		return ColorYellow
	default:
		return ColorRed
	}
}

// ClampRisk bounds a score to 0-100.
func ClampRisk(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxRisk {
		return MaxRisk
	}
	return score
}

// SemanticScores is the output of the semantic analyzer.
type SemanticScores struct {
	// Tone ranges from -1 (aggressive/negative) to 1 (balanced/positive).
	Tone float64 `json:"tone"`

	// MisleadingClaimScore ranges from 0 (none) to 1 (clearly misleading).
	MisleadingClaimScore float64 `json:"misleading_claim_score"`

	// Clarity ranges from 0 (opaque) to 1 (clear).
	Clarity float64 `json:"clarity"`

	// Confidence is the analyzer's confidence in its scores, 0 to 1.
	Confidence float64 `json:"confidence"`
}

// ValidationResult is the verdict for one content item. It is created once
// per validation and never mutated.
type ValidationResult struct {
	ContentID          string          `json:"content_id"`
	AdvisorID          string          `json:"advisor_id"`
	ContentHash        string          `json:"content_hash"`
	Stages             []StageResult   `json:"stages"`
	Violations         []Violation     `json:"violations"`
	MissingDisclaimers []string        `json:"missing_disclaimers,omitempty"`
	RiskScore          int             `json:"risk_score"`
	ColorCode          ColorCode       `json:"color_code"`
	IsCompliant        bool            `json:"is_compliant"`
	FallbackUsed       bool            `json:"fallback_used"`
	Semantic           *SemanticScores `json:"semantic,omitempty"`
	ProcessingTime     time.Duration   `json:"processing_time"`
	ValidatedAt        time.Time       `json:"validated_at"`
}

// ExecutedStages returns the number of stages that actually ran.
func (r *ValidationResult) ExecutedStages() int {
	n := 0
	for _, s := range r.Stages {
		if !s.Skipped {
			n++
		}
	}
	return n
}

// Stage returns the result for the named stage.
func (r *ValidationResult) Stage(name StageName) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// HighRisk reports whether the verdict must be flagged for expedited review.
func (r *ValidationResult) HighRisk() bool {
	return r.RiskScore > YellowMax || !r.IsCompliant
}

// HashContent returns the hex SHA-256 of the normalized content text.
// Leading and trailing whitespace is ignored.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}
