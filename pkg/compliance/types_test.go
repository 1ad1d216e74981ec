package compliance

import (
	"errors"
	"strings"
	"testing"
)

func TestColorFor(t *testing.T) {
	tests := []struct {
		score int
		want  ColorCode
	}{
		{0, ColorGreen},
		{30, ColorGreen},
		{31, ColorYellow},
		{70, ColorYellow},
		{71, ColorRed},
		{100, ColorRed},
	}

	for _, tt := range tests {
		if got := ColorFor(tt.score); got != tt.want {
			t.Errorf("ColorFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestHashContent(t *testing.T) {
	a := HashContent("Mutual funds are subject to market risks.")
	b := HashContent("  Mutual funds are subject to market risks.\n")
	if a != b {
		t.Error("surrounding whitespace should not change the hash")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == HashContent("something else") {
		t.Error("different text produced the same hash")
	}
}

func TestViolationTypes(t *testing.T) {
	vs := []Violation{
		{Type: ViolationSoftTerm},
		{Type: ViolationMissingDisclaimer},
		{Type: ViolationSoftTerm},
	}
	got := ViolationTypes(vs)
	if len(got) != 2 || got[0] != ViolationSoftTerm || got[1] != ViolationMissingDisclaimer {
		t.Errorf("unexpected types: %v", got)
	}
}

func TestValidationResult_HighRisk(t *testing.T) {
	if (&ValidationResult{RiskScore: 20, IsCompliant: true}).HighRisk() {
		t.Error("compliant low-risk result should not be high risk")
	}
	if !(&ValidationResult{RiskScore: 71, IsCompliant: true}).HighRisk() {
		t.Error("risk above 70 should be high risk")
	}
	if !(&ValidationResult{RiskScore: 10, IsCompliant: false}).HighRisk() {
		t.Error("non-compliant result should be high risk")
	}
}

func TestNewViolationError(t *testing.T) {
	result := &ValidationResult{
		ContentID: "c-1",
		RiskScore: 100,
		Violations: []Violation{
			{Type: ViolationProhibitedTerm, Severity: SeverityCritical, Term: "no risk"},
		},
	}

	var err error = NewViolationError(result)

	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatal("expected *ViolationError")
	}
	if !verr.Critical() {
		t.Error("expected critical kind")
	}
	if !strings.Contains(err.Error(), ViolationProhibitedTerm) {
		t.Errorf("error should name the violation type: %s", err)
	}
}
