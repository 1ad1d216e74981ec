package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/cli"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/pipeline"
	"github.com/shriyavallabh/Jarvish-sub008/pkg/compliance/semantic"
)

var validateFlags struct {
	text     string
	language string
	advisor  string
	strict   bool
	fix      bool
	write    bool
	offline  bool
	output   string
}

var validateCmd = &cobra.Command{
	Use:   "validate [file|-]...",
	Short: "Validate content against the compliance rules",
	Long: `Validate promotional content without delivering it.

Each file is run through the compliance pipeline and the verdict is printed.
Verdicts are not recorded in the audit trail. The command exits with status 2
when any content is rejected, so it can gate a CI job.

Examples:
  # Validate a draft
  jarvish validate post.txt

  # Validate a draft piped on stdin
  cat post.txt | jarvish validate -

  # Validate inline text in Hindi
  jarvish validate --text "..." --language hi

  # Auto-fix and rewrite files in place
  jarvish validate drafts/*.txt --fix --write

  # Rules-only checks, JSON output
  jarvish validate post.txt --offline --output json`,
	RunE: validateContent,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.text, "text", "", "validate this text instead of files")
	validateCmd.Flags().StringVar(&validateFlags.language, "language", "en", "content language (en, hi)")
	validateCmd.Flags().StringVar(&validateFlags.advisor, "advisor", "cli", "advisor ID to validate as")
	validateCmd.Flags().BoolVar(&validateFlags.strict, "strict", false, "apply strict rule checking")
	validateCmd.Flags().BoolVar(&validateFlags.fix, "fix", false, "auto-fix non-critical violations")
	validateCmd.Flags().BoolVar(&validateFlags.write, "write", false, "with --fix, write fixed text back to files")
	validateCmd.Flags().BoolVar(&validateFlags.offline, "offline", false, "skip the semantic analysis service")
	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json, csv")
}

type contentSource struct {
	name string
	path string
	text string
}

func validateContent(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.output)
	if err != nil {
		return err
	}
	sources, err := readSources(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	engine, _, err := buildEngine(ctx, cfg.Rules, logger)
	if err != nil {
		return err
	}

	var analyzer semantic.Analyzer = semantic.Disabled()
	if !validateFlags.offline {
		if analyzer, err = semantic.New(cfg.Semantic, logger); err != nil {
			return err
		}
	}
	p := pipeline.New(engine, analyzer, pipeline.ConfigFrom(cfg.Pipeline, cfg.Rules), logger)

	var progress cli.ProgressReporter = cli.NoopProgress{}
	if len(sources) > 1 && format == cli.FormatText {
		progress = cli.NewProgressReporter(os.Stderr, "Validating")
	}
	progress.Start(int64(len(sources)))

	reports := make(cli.ValidationReports, 0, len(sources))
	rejected := 0
	for i, src := range sources {
		report, err := validateSource(ctx, p, src)
		if err != nil {
			progress.Error(err)
			return fmt.Errorf("%s: %w", src.name, err)
		}
		if !(cli.ValidationReports{report}).Compliant() {
			rejected++
		}
		reports = append(reports, report)
		progress.Update(int64(i + 1))
	}
	progress.Finish()

	if err := cli.NewFormatter(format).FormatTo(stdout(cmd), reports); err != nil {
		return err
	}
	if rejected > 0 {
		return &cli.RejectedError{Rejected: rejected, Total: len(reports)}
	}
	return nil
}

func validateSource(ctx context.Context, p *pipeline.Pipeline, src contentSource) (*cli.ValidationReport, error) {
	item := &compliance.ContentItem{
		ID:        src.name,
		Text:      src.text,
		Language:  validateFlags.language,
		AdvisorID: validateFlags.advisor,
	}
	opts := pipeline.Options{Strict: validateFlags.strict}

	if !validateFlags.fix {
		result, err := p.Validate(ctx, item, opts)
		if err != nil {
			return nil, err
		}
		return &cli.ValidationReport{Source: src.name, Result: result}, nil
	}

	fix, err := p.AutoFixAndRevalidate(ctx, item, opts)
	if err != nil {
		return nil, err
	}
	if validateFlags.write && fix.Applied && src.path != "" {
		if err := os.WriteFile(src.path, []byte(fix.FixedText), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write fixed content: %w", err)
		}
	}
	return &cli.ValidationReport{Source: src.name, Result: fix.Original, Fix: fix}, nil
}

func readSources(args []string) ([]contentSource, error) {
	if validateFlags.text != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--text cannot be combined with files")
		}
		return []contentSource{{name: "text", text: validateFlags.text}}, nil
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("either files or --text must be specified")
	}

	sources := make([]contentSource, 0, len(args))
	for _, path := range args {
		if path == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read stdin: %w", err)
			}
			sources = append(sources, contentSource{name: "stdin", text: string(data)})
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read content: %w", err)
		}
		sources = append(sources, contentSource{name: filepath.Base(path), path: path, text: string(data)})
	}
	return sources, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

func stdout(cmd *cobra.Command) io.Writer {
	if cmd != nil {
		return cmd.OutOrStdout()
	}
	return os.Stdout
}
