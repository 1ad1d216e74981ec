package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
)

// Header is the CSV column layout.
var Header = []string{
	"entry_id", "timestamp", "advisor_id", "action",
	"content_id", "delivery_id", "content_hash",
	"risk_score", "color_code", "is_compliant", "fallback_used", "violation_types",
	"regulatory_identifier", "processing_time_ms",
	"delivery_status", "message_id", "attempts", "error_kind", "error",
	"retention_date", "flagged", "flag_reason",
}

// CSVExporter writes entries as CSV rows. Multi-valued fields are joined with ';'.
type CSVExporter struct {
	// IncludeHeader writes Header as the first row.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes entries to w.
func (e *CSVExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(Header); err != nil {
			return audit.NewExportError(string(FormatCSV), len(entries), err)
		}
	}

	for i, entry := range entries {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return audit.NewExportError(string(FormatCSV), len(entries), err)
			}
		}
		if err := writer.Write(row(entry)); err != nil {
			return audit.NewExportError(string(FormatCSV), len(entries), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError(string(FormatCSV), len(entries), err)
	}
	return nil
}

func row(e *audit.Entry) []string {
	return []string{
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.AdvisorID,
		string(e.Action),
		e.ContentID,
		e.DeliveryID,
		e.ContentHash,
		strconv.Itoa(e.RiskScore),
		e.ColorCode,
		strconv.FormatBool(e.IsCompliant),
		strconv.FormatBool(e.FallbackUsed),
		strings.Join(e.ViolationTypes, ";"),
		e.RegulatoryIdentifier,
		strconv.FormatInt(e.ProcessingTime.Milliseconds(), 10),
		e.DeliveryStatus,
		e.MessageID,
		strconv.Itoa(e.Attempts),
		e.ErrorKind,
		e.Error,
		e.RetentionDate.UTC().Format(time.RFC3339Nano),
		strconv.FormatBool(e.Flagged),
		e.FlagReason,
	}
}

func countCSV(data []byte) (int, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("missing header row")
	}
	if !slices.Equal(records[0], Header) {
		return 0, fmt.Errorf("unexpected header row")
	}
	return len(records) - 1, nil
}
