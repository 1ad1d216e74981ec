package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/export"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/audit/trail"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/cli"
)

var auditFlags struct {
	advisor  string
	content  string
	delivery string
	actions  []string
	start    string
	end      string
	flagged  bool
	minRisk  int
	limit    int
	offset   int
	order    string
	output   string
	format   string
	out      string
	checksum string

	verifyFormat string
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query and export the audit trail",
	Long: `Query, export and maintain the compliance audit trail.

Subcommands:
  query   - List audit entries with filters
  export  - Write a checksummed compliance export
  purge   - Remove entries past their retention date
  verify  - Check an export file against its checksum

Examples:
  # Flagged verdicts for one advisor
  jarvish audit query --advisor adv-42 --flagged

  # CSV export for January
  jarvish audit export --start 2026-01-01T00:00:00Z --end 2026-02-01T00:00:00Z --format csv --out jan.csv

  # Verify the export received by the regulator
  jarvish audit verify jan.csv --checksum 3f2a...`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit entries",
	RunE:  queryAudit,
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries for compliance review",
	RunE:  exportAudit,
}

var auditPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove entries past their retention date",
	RunE:  purgeAudit,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify a compliance export",
	Args:  cobra.ExactArgs(1),
	RunE:  verifyExport,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditExportCmd, auditPurgeCmd, auditVerifyCmd)

	q := auditQueryCmd.Flags()
	q.StringVar(&auditFlags.advisor, "advisor", "", "filter by advisor ID")
	q.StringVar(&auditFlags.content, "content", "", "filter by content ID")
	q.StringVar(&auditFlags.delivery, "delivery", "", "filter by delivery ID")
	q.StringSliceVar(&auditFlags.actions, "action", nil, "filter by action (repeatable)")
	q.StringVar(&auditFlags.start, "start", "", "entries at or after this time (RFC3339)")
	q.StringVar(&auditFlags.end, "end", "", "entries before this time (RFC3339)")
	q.BoolVar(&auditFlags.flagged, "flagged", false, "only entries flagged for review")
	q.IntVar(&auditFlags.minRisk, "min-risk", 0, "minimum risk score")
	q.IntVar(&auditFlags.limit, "limit", 100, "max results")
	q.IntVar(&auditFlags.offset, "offset", 0, "pagination offset")
	q.StringVar(&auditFlags.order, "order", audit.SortDesc, "sort order: asc, desc")
	q.StringVarP(&auditFlags.output, "output", "o", "text", "output format: text, json, csv")

	e := auditExportCmd.Flags()
	e.StringVar(&auditFlags.advisor, "advisor", "", "limit export to one advisor")
	e.StringVar(&auditFlags.start, "start", "", "export start (RFC3339, required)")
	e.StringVar(&auditFlags.end, "end", "", "export end (RFC3339, required)")
	e.StringVar(&auditFlags.format, "format", string(export.FormatJSON), "export format: json, csv")
	e.StringVar(&auditFlags.out, "out", "", "output file (default: stdout)")

	auditVerifyCmd.Flags().StringVar(&auditFlags.verifyFormat, "format", "", "export format (default: from file extension)")
	auditVerifyCmd.Flags().StringVar(&auditFlags.checksum, "checksum", "", "expected checksum")
}

// openTrail opens the configured audit trail. Commands log to stderr.
func openTrail() (*trail.Trail, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}
	return buildTrail(cfg.Audit, logger)
}

func auditQuery() (audit.Query, error) {
	q := audit.Query{
		AdvisorID:  auditFlags.advisor,
		ContentID:  auditFlags.content,
		DeliveryID: auditFlags.delivery,
		Limit:      auditFlags.limit,
		Offset:     auditFlags.offset,
		SortOrder:  auditFlags.order,
	}
	for _, a := range auditFlags.actions {
		action := audit.Action(strings.TrimSpace(a))
		if !action.Valid() {
			return q, fmt.Errorf("unknown action %q", a)
		}
		q.Actions = append(q.Actions, action)
	}
	if auditFlags.start != "" {
		t, err := time.Parse(time.RFC3339, auditFlags.start)
		if err != nil {
			return q, fmt.Errorf("invalid --start: %w", err)
		}
		q.StartTime = &t
	}
	if auditFlags.end != "" {
		t, err := time.Parse(time.RFC3339, auditFlags.end)
		if err != nil {
			return q, fmt.Errorf("invalid --end: %w", err)
		}
		q.EndTime = &t
	}
	if auditFlags.flagged {
		flagged := true
		q.Flagged = &flagged
	}
	if auditFlags.minRisk > 0 {
		minRisk := auditFlags.minRisk
		q.MinRiskScore = &minRisk
	}
	return q, nil
}

func queryAudit(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(auditFlags.output)
	if err != nil {
		return err
	}
	q, err := auditQuery()
	if err != nil {
		return err
	}

	tr, err := openTrail()
	if err != nil {
		return err
	}
	defer tr.Close()

	res, err := tr.Query(commandContext(cmd), q)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(stdout(cmd), &cli.AuditTable{Entries: res.Entries, Total: res.Total})
}

func exportAudit(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(auditFlags.format)
	if err != nil {
		return err
	}
	if auditFlags.start == "" || auditFlags.end == "" {
		return fmt.Errorf("--start and --end are required")
	}
	start, err := time.Parse(time.RFC3339, auditFlags.start)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, auditFlags.end)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("--start must be before --end")
	}

	tr, err := openTrail()
	if err != nil {
		return err
	}
	defer tr.Close()

	exp, err := tr.ExportForCompliance(commandContext(cmd), trail.ExportRequest{
		AdvisorID: auditFlags.advisor,
		Start:     start,
		End:       end,
		Format:    format,
	})
	if err != nil {
		return err
	}

	if auditFlags.out == "" {
		_, err := stdout(cmd).Write(exp.Data)
		return err
	}
	if err := os.WriteFile(auditFlags.out, exp.Data, 0o600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(stdout(cmd), "✓ Exported %d records to %s\n", exp.RecordCount, auditFlags.out)
	fmt.Fprintf(stdout(cmd), "  Checksum (sha256): %s\n", exp.Checksum)
	return nil
}

func purgeAudit(cmd *cobra.Command, args []string) error {
	tr, err := openTrail()
	if err != nil {
		return err
	}
	defer tr.Close()

	purged, err := tr.PurgeExpired(commandContext(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(cmd), "✓ Purged %d expired entries\n", purged)
	return nil
}

func verifyExport(cmd *cobra.Command, args []string) error {
	path := args[0]
	name := auditFlags.verifyFormat
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	count, checksum, err := export.Verify(data, format)
	if err != nil {
		return err
	}
	if auditFlags.checksum != "" && !strings.EqualFold(auditFlags.checksum, checksum) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", auditFlags.checksum, checksum)
	}

	fmt.Fprintf(stdout(cmd), "✓ %s: %d records, checksum %s\n", filepath.Base(path), count, checksum)
	return nil
}
