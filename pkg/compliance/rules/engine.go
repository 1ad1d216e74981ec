package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
)

// CheckResult is the outcome of a rule check.
type CheckResult struct {
	Violations         []compliance.Violation `json:"violations"`
	MissingDisclaimers []string               `json:"missing_disclaimers,omitempty"`
	RiskScore          int                    `json:"risk_score"`
	Critical           bool                   `json:"critical"`
}

// Engine runs deterministic rulebook checks over raw content. It does no
// I/O and is safe for concurrent use; Reload swaps the rulebook atomically.
type Engine struct {
	rules atomic.Pointer[compiledRulebook]
}

// NewEngine compiles rb into a new Engine. A nil rulebook selects
// DefaultRulebook.
func NewEngine(rb *Rulebook) (*Engine, error) {
	if rb == nil {
		rb = DefaultRulebook()
	}
	e := &Engine{}
	if err := e.Reload(rb); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload replaces the active rulebook. On error the previous rulebook stays
// in effect.
func (e *Engine) Reload(rb *Rulebook) error {
	c, err := compile(rb)
	if err != nil {
		return fmt.Errorf("failed to compile rulebook: %w", err)
	}
	e.rules.Store(c)
	return nil
}

// Rulebook returns the active rulebook.
func (e *Engine) Rulebook() *Rulebook {
	return e.rules.Load().source
}

// Check evaluates text against the active rulebook. A critical match sets
// RiskScore to 100. In strict mode a missing educational marker becomes a
// violation and all weights are doubled.
func (e *Engine) Check(text, language string, strict bool) *CheckResult {
	rb := e.rules.Load()
	result := &CheckResult{}

	for _, t := range rb.critical {
		for _, match := range uniqueMatches(t.re, text) {
			result.Violations = append(result.Violations, compliance.Violation{
				Type:     compliance.ViolationProhibitedTerm,
				Severity: compliance.SeverityCritical,
				Term:     match,
				Message:  t.message,
			})
			result.Critical = true
		}
	}

	if result.Critical {
		result.RiskScore = compliance.MaxRisk
		return result
	}

	multiplier := 1
	if strict {
		multiplier = 2
	}
	risk := 0

	for _, t := range rb.soft {
		for _, match := range uniqueMatches(t.re, text) {
			result.Violations = append(result.Violations, compliance.Violation{
				Type:     compliance.ViolationSoftTerm,
				Severity: compliance.SeverityMedium,
				Term:     match,
				Message:  t.message,
				Fixable:  true,
			})
			risk += rb.weights.SoftTerm * multiplier
		}
	}

	for _, d := range rb.disclaimers {
		if d.present(text) {
			continue
		}
		result.MissingDisclaimers = append(result.MissingDisclaimers, d.name)
		result.Violations = append(result.Violations, compliance.Violation{
			Type:     compliance.ViolationMissingDisclaimer,
			Severity: compliance.SeverityHigh,
			Term:     d.name,
			Message:  "Mandatory disclaimer is missing",
			Fixable:  d.textFor(language) != "",
		})
		risk += rb.weights.MissingDisclaimer * multiplier
	}

	if rb.idRequired && !rb.hasIdentifier(text) {
		result.Violations = append(result.Violations, compliance.Violation{
			Type:     compliance.ViolationMissingIdentifier,
			Severity: compliance.SeverityHigh,
			Message:  "Advisor regulatory identifier (EUIN/ARN) is missing",
		})
		risk += rb.weights.MissingIdentifier * multiplier
	}

	if strict && len(rb.markers) > 0 && !rb.hasMarker(text) {
		result.Violations = append(result.Violations, compliance.Violation{
			Type:     compliance.ViolationNotEducational,
			Severity: compliance.SeverityLow,
			Message:  "Content has no educational or actionable element",
		})
		risk += rb.weights.NotEducational * multiplier
	}

	result.RiskScore = compliance.ClampRisk(risk)
	return result
}

// AutoFix rewrites soft violations and appends missing disclaimers in the
// given language. It refuses (returns false) whenever a critical violation
// is present. Violations that cannot be fixed, such as a missing
// identifier, are left for revalidation to report.
func (e *Engine) AutoFix(text, language string, violations []compliance.Violation, missingDisclaimers []string) (string, bool) {
	if compliance.HasCritical(violations) {
		return "", false
	}

	rb := e.rules.Load()
	fixed := text

	for _, v := range violations {
		if v.Type != compliance.ViolationSoftTerm || !v.Fixable {
			continue
		}
		for _, t := range rb.soft {
			if t.re.MatchString(v.Term) {
				fixed = t.re.ReplaceAllLiteralString(fixed, t.replacement)
				break
			}
		}
	}

	for _, name := range missingDisclaimers {
		d, ok := rb.disclaimer(name)
		if !ok || d.present(fixed) {
			continue
		}
		if disclaimer := d.textFor(language); disclaimer != "" {
			fixed = strings.TrimRight(fixed, " \n\t") + "\n\n" + disclaimer
		}
	}

	return fixed, true
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	if len(matches) < 2 {
		return matches
	}
	seen := make(map[string]bool, len(matches))
	out := matches[:0]
	for _, m := range matches {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

func (d compiledDisclaimer) present(text string) bool {
	for _, re := range d.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (d compiledDisclaimer) textFor(language string) string {
	if t, ok := d.text[strings.ToLower(language)]; ok && t != "" {
		return t
	}
	return d.text["en"]
}

func (c *compiledRulebook) disclaimer(name string) (compiledDisclaimer, bool) {
	for _, d := range c.disclaimers {
		if d.name == name {
			return d, true
		}
	}
	return compiledDisclaimer{}, false
}

func (c *compiledRulebook) hasIdentifier(text string) bool {
	for _, re := range c.identifiers {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (c *compiledRulebook) hasMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range c.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
