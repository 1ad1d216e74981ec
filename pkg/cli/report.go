package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/pipeline"
)

var colorMarks = map[compliance.ColorCode]string{
	compliance.ColorGreen:  "●",
	compliance.ColorYellow: "▲",
	compliance.ColorRed:    "■",
}

// ValidationReport renders one or more verdicts.
type ValidationReport struct {
	Source string                       `json:"source,omitempty"`
	Result *compliance.ValidationResult `json:"result"`

	// Set when auto-fix was requested.
	Fix *pipeline.FixResult `json:"fix,omitempty"`
}

// RenderText writes a human-readable verdict.
func (r *ValidationReport) RenderText(w io.Writer) error {
	res := r.Result
	verdict := "COMPLIANT"
	if !res.IsCompliant {
		verdict = "REJECTED"
	}

	var b strings.Builder
	if r.Source != "" {
		fmt.Fprintf(&b, "%s\n", r.Source)
	}
	fmt.Fprintf(&b, "%s %s  risk %d (%s)\n", colorMarks[res.ColorCode], verdict, res.RiskScore, res.ColorCode)
	if res.FallbackUsed {
		b.WriteString("  semantic analysis unavailable, rule-based verdict\n")
	}
	for _, v := range res.Violations {
		fmt.Fprintf(&b, "  - [%s] %s", v.Severity, v.Type)
		if v.Term != "" {
			fmt.Fprintf(&b, " %q", v.Term)
		}
		if v.Fixable {
			b.WriteString(" (fixable)")
		}
		b.WriteString("\n")
	}
	for _, s := range res.Stages {
		state := "passed"
		switch {
		case s.Skipped:
			state = "skipped"
		case !s.Passed:
			state = "failed"
		}
		fmt.Fprintf(&b, "  stage %-15s %-8s %s\n", s.Name, state, s.Duration.Round(time.Microsecond))
	}
	if r.Fix != nil && r.Fix.Applied {
		fmt.Fprintf(&b, "  auto-fixed: risk %d (%s)\n  %s\n", r.Fix.Fixed.RiskScore, r.Fix.Fixed.ColorCode, r.Fix.FixedText)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// ValidationReports is the result of validating several items.
type ValidationReports []*ValidationReport

// RenderText writes every report separated by blank lines.
func (rs ValidationReports) RenderText(w io.Writer) error {
	for i, r := range rs {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := r.RenderText(w); err != nil {
			return err
		}
	}
	return nil
}

// Header implements Tabular.
func (rs ValidationReports) Header() []string {
	return []string{"source", "content_id", "compliant", "risk_score", "color_code", "violations", "fallback_used"}
}

// Rows implements Tabular.
func (rs ValidationReports) Rows() [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{
			r.Source,
			r.Result.ContentID,
			strconv.FormatBool(r.Result.IsCompliant),
			strconv.Itoa(r.Result.RiskScore),
			string(r.Result.ColorCode),
			strings.Join(compliance.ViolationTypes(r.Result.Violations), ";"),
			strconv.FormatBool(r.Result.FallbackUsed),
		})
	}
	return rows
}

// Compliant reports whether every verdict is compliant, after auto-fix when
// one was applied.
func (rs ValidationReports) Compliant() bool {
	for _, r := range rs {
		if r.Fix != nil && r.Fix.Applied {
			if !r.Fix.Fixed.IsCompliant {
				return false
			}
			continue
		}
		if !r.Result.IsCompliant {
			return false
		}
	}
	return true
}

// AuditTable renders a page of audit entries.
type AuditTable struct {
	Entries []*audit.Entry `json:"entries"`
	Total   int64          `json:"total"`
}

// RenderText writes one line per entry.
func (t *AuditTable) RenderText(w io.Writer) error {
	var b strings.Builder
	for _, e := range t.Entries {
		flag := " "
		if e.Flagged {
			flag = "!"
		}
		detail := e.DeliveryStatus
		if e.Action.Verdict() {
			detail = fmt.Sprintf("risk=%d %s", e.RiskScore, e.ColorCode)
		}
		fmt.Fprintf(&b, "%s %s %-19s advisor=%s content=%s %s\n",
			flag, e.Timestamp.UTC().Format(time.RFC3339), e.Action, e.AdvisorID, e.ContentID, detail)
	}
	fmt.Fprintf(&b, "%d of %d entries\n", len(t.Entries), t.Total)
	_, err := io.WriteString(w, b.String())
	return err
}

// Header implements Tabular.
func (t *AuditTable) Header() []string {
	return []string{"entry_id", "timestamp", "action", "advisor_id", "content_id", "delivery_id", "risk_score", "color_code", "delivery_status", "flagged"}
}

// Rows implements Tabular.
func (t *AuditTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		rows = append(rows, []string{
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			string(e.Action),
			e.AdvisorID,
			e.ContentID,
			e.DeliveryID,
			strconv.Itoa(e.RiskScore),
			e.ColorCode,
			e.DeliveryStatus,
			strconv.FormatBool(e.Flagged),
		})
	}
	return rows
}
