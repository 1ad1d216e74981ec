package compliance

import (
	"fmt"
	"strings"
)

// ViolationKind classifies a rejected verdict.
type ViolationKind string

const (
	// KindCritical content is rejected and never retried or auto-fixed.
	KindCritical ViolationKind = "critical"

	// KindMinor content is eligible for auto-fix.
	KindMinor ViolationKind = "minor"
)

// ViolationError is returned when content fails validation and the caller
// asked for a hard outcome (e.g. submitting for delivery).
type ViolationError struct {
	Kind       ViolationKind
	ContentID  string
	RiskScore  int
	Violations []Violation
}

// Error implements the error interface.
func (e *ViolationError) Error() string {
	types := ViolationTypes(e.Violations)
	if len(types) == 0 {
		return fmt.Sprintf("content %s rejected (%s violation, risk %d)", e.ContentID, e.Kind, e.RiskScore)
	}
	return fmt.Sprintf("content %s rejected (%s violation, risk %d): %s",
		e.ContentID, e.Kind, e.RiskScore, strings.Join(types, ", "))
}

// Critical reports whether the rejection is final.
func (e *ViolationError) Critical() bool {
	return e.Kind == KindCritical
}

// NewViolationError builds a ViolationError from a non-compliant result.
func NewViolationError(result *ValidationResult) *ViolationError {
	kind := KindMinor
	if HasCritical(result.Violations) {
		kind = KindCritical
	}
	return &ViolationError{
		Kind:       kind,
		ContentID:  result.ContentID,
		RiskScore:  result.RiskScore,
		Violations: result.Violations,
	}
}
