package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
)

// Format is an export serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat parses a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (must be json or csv)", s)
	}
}

// Exporter serializes audit entries.
type Exporter interface {
	Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error
}

// Export is a finished compliance export.
type Export struct {
	Format      Format    `json:"format"`
	Data        []byte    `json:"-"`
	RecordCount int       `json:"record_count"`
	Checksum    string    `json:"checksum"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Build serializes entries and computes the checksum over the data payload.
func Build(ctx context.Context, entries []*audit.Entry, format Format, pretty bool) (*Export, error) {
	var exporter Exporter
	switch format {
	case FormatJSON:
		exporter = NewJSONExporter(pretty)
	case FormatCSV:
		exporter = NewCSVExporter(true)
	default:
		return nil, audit.NewExportError(string(format), len(entries), fmt.Errorf("unsupported format"))
	}

	var buf bytes.Buffer
	if err := exporter.Export(ctx, entries, &buf); err != nil {
		return nil, err
	}

	data := buf.Bytes()
	return &Export{
		Format:      format,
		Data:        data,
		RecordCount: len(entries),
		Checksum:    Checksum(data),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify re-parses exported data and returns its record count and checksum.
// A matching pair proves the export is intact.
func Verify(data []byte, format Format) (int, string, error) {
	var (
		count int
		err   error
	)
	switch format {
	case FormatJSON:
		count, err = countJSON(data)
	case FormatCSV:
		count, err = countCSV(data)
	default:
		err = fmt.Errorf("unsupported format")
	}
	if err != nil {
		return 0, "", audit.NewExportError(string(format), 0, err)
	}
	return count, Checksum(data), nil
}
