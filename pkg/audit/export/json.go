package export

import (
	"context"
	"encoding/json"
	"io"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
)

// JSONExporter writes entries as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes entries to w. An empty export is "[]".
func (e *JSONExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	if entries == nil {
		entries = []*audit.Entry{}
	}

	var (
		data []byte
		err  error
	)
	if e.Pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return audit.NewExportError(string(FormatJSON), len(entries), err)
	}

	if _, err := w.Write(data); err != nil {
		return audit.NewExportError(string(FormatJSON), len(entries), err)
	}
	return nil
}

// ParseJSON decodes a JSON export back into entries.
func ParseJSON(data []byte) ([]*audit.Entry, error) {
	var entries []*audit.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func countJSON(data []byte) (int, error) {
	entries, err := ParseJSON(data)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
