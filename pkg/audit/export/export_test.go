package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
)

func sampleEntries(n int) []*audit.Entry {
	ts := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	entries := make([]*audit.Entry, n)
	for i := range entries {
		entries[i] = &audit.Entry{
			ID:                   fmt.Sprintf("entry-%d", i),
			Timestamp:            ts.Add(time.Duration(i) * time.Minute),
			Action:               audit.ActionContentValidated,
			AdvisorID:            "adv-42",
			ContentID:            fmt.Sprintf("content-%d", i),
			ContentHash:          "3b7f0c",
			RiskScore:            35,
			ColorCode:            "yellow",
			ViolationTypes:       []string{"soft_term", "missing_disclaimer"},
			RegulatoryIdentifier: "EUIN: E123456",
			ProcessingTime:       850 * time.Millisecond,
			Error:                `gateway said "no", then hung up`,
			RetentionDate:        ts.AddDate(5, 0, 0),
			Exportable:           true,
		}
	}
	return entries
}

func TestBuildAndVerify_RoundTrip(t *testing.T) {
	tests := []struct {
		format Format
		pretty bool
		count  int
	}{
		{FormatJSON, false, 3},
		{FormatJSON, true, 3},
		{FormatJSON, false, 0},
		{FormatCSV, false, 3},
		{FormatCSV, false, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_pretty=%v_n=%d", tt.format, tt.pretty, tt.count), func(t *testing.T) {
			exp, err := Build(context.Background(), sampleEntries(tt.count), tt.format, tt.pretty)
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}
			if exp.RecordCount != tt.count {
				t.Errorf("expected %d records, got %d", tt.count, exp.RecordCount)
			}

			count, sum, err := Verify(exp.Data, tt.format)
			if err != nil {
				t.Fatalf("verify failed: %v", err)
			}
			if count != exp.RecordCount {
				t.Errorf("record count mismatch: export=%d verify=%d", exp.RecordCount, count)
			}
			if sum != exp.Checksum {
				t.Errorf("checksum mismatch: export=%s verify=%s", exp.Checksum, sum)
			}
		})
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	exp, err := Build(context.Background(), sampleEntries(2), FormatCSV, false)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	tampered := bytes.Replace(exp.Data, []byte("35"), []byte("15"), 1)
	_, sum, err := Verify(tampered, FormatCSV)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if sum == exp.Checksum {
		t.Error("expected checksum to change after tampering")
	}
}

func TestVerify_Malformed(t *testing.T) {
	if _, _, err := Verify([]byte("{not json"), FormatJSON); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, _, err := Verify([]byte("a,b\n1,2\n"), FormatCSV); err == nil {
		t.Error("expected error for CSV with wrong header")
	}
	if _, _, err := Verify([]byte("[]"), Format("xml")); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCSVExporter_Columns(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), sampleEntries(1), &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d rows", len(records))
	}

	row := map[string]string{}
	for i, col := range Header {
		row[col] = records[1][i]
	}
	if row["violation_types"] != "soft_term;missing_disclaimer" {
		t.Errorf("unexpected violation_types: %q", row["violation_types"])
	}
	if row["processing_time_ms"] != "850" {
		t.Errorf("unexpected processing_time_ms: %q", row["processing_time_ms"])
	}
	if row["timestamp"] != "2026-05-04T09:30:00Z" {
		t.Errorf("unexpected timestamp: %q", row["timestamp"])
	}
	if row["error"] != `gateway said "no", then hung up` {
		t.Errorf("quoted field not preserved: %q", row["error"])
	}
}

func TestParseJSON_PreservesEntries(t *testing.T) {
	exp, err := Build(context.Background(), sampleEntries(2), FormatJSON, true)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	entries, err := ParseJSON(exp.Data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if entries[1].ID != "entry-1" || entries[1].ProcessingTime != 850*time.Millisecond {
		t.Errorf("unexpected parsed entry: %+v", entries[1])
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" CSV "); err != nil || f != FormatCSV {
		t.Errorf("expected csv, got %q, %v", f, err)
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("expected error for pdf")
	}
}
