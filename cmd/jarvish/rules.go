package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/rules"
)

var rulesFlags struct {
	format string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and lint rulebooks",
	Long: `Inspect and lint compliance rulebooks.

Examples:
  # Lint a rulebook before committing it
  jarvish rules lint rules/promotions.yaml

  # Show the built-in rulebook summary
  jarvish rules show`,
}

var rulesLintCmd = &cobra.Command{
	Use:   "lint <file>...",
	Short: "Validate rulebook files",
	Long: `Validate rulebook files for YAML syntax, invalid patterns and missing
disclaimer texts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: lintRulebooks,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Summarize a rulebook (default: built-in)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showRulebook,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesLintCmd, rulesShowCmd)

	rulesLintCmd.Flags().StringVar(&rulesFlags.format, "format", "text", "output format: text, json")
}

// LintResult is the lint outcome for one rulebook file.
type LintResult struct {
	File    string `json:"file"`
	Valid   bool   `json:"valid"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

func lintRulebook(path string) LintResult {
	result := LintResult{File: path}

	rb, err := rules.LoadRulebook(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if _, err := rules.NewEngine(rb); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Valid = true
	result.Version = rb.Version
	return result
}

func lintRulebooks(cmd *cobra.Command, args []string) error {
	if rulesFlags.format != "text" && rulesFlags.format != "json" {
		return fmt.Errorf("unsupported format %q (must be text or json)", rulesFlags.format)
	}

	results := make([]LintResult, 0, len(args))
	invalid := 0
	for _, path := range args {
		r := lintRulebook(path)
		if !r.Valid {
			invalid++
		}
		results = append(results, r)
	}

	w := stdout(cmd)
	if rulesFlags.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "✓ %s (version %s)\n", r.File, r.Version)
			} else {
				fmt.Fprintf(w, "✗ %s: %s\n", r.File, r.Error)
			}
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d rulebooks invalid", invalid, len(results))
	}
	return nil
}

func showRulebook(cmd *cobra.Command, args []string) error {
	rb := rules.DefaultRulebook()
	source := "built-in"
	if len(args) == 1 {
		loaded, err := rules.LoadRulebook(args[0])
		if err != nil {
			return err
		}
		rb, source = loaded, args[0]
	}
	printRulebook(stdout(cmd), source, rb)
	return nil
}

func printRulebook(w io.Writer, source string, rb *rules.Rulebook) {
	fmt.Fprintf(w, "Rulebook %s (%s)\n", rb.Version, source)
	fmt.Fprintf(w, "  Critical terms:      %d\n", len(rb.CriticalTerms))
	fmt.Fprintf(w, "  Soft terms:          %d\n", len(rb.SoftTerms))
	fmt.Fprintf(w, "  Disclaimers:         %d\n", len(rb.Disclaimers))
	for _, d := range rb.Disclaimers {
		fmt.Fprintf(w, "    - %s (%d languages)\n", d.Name, len(d.Text))
	}
	fmt.Fprintf(w, "  Identifier required: %t\n", rb.Identifier.Required)
	fmt.Fprintf(w, "  Educational markers: %d\n", len(rb.EducationalMarkers))
}
