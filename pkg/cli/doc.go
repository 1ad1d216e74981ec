/*
Package cli provides command-line helpers for the jarvish command.

Output Formatting:

Results are written as text, JSON or CSV. Types implementing TextRenderer
control their text form; types implementing Tabular can be written as CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, cli.ValidationReports(reports)); err != nil {
		return err
	}

Progress Reporting:

Long-running operations report progress on stderr:

	progress := cli.NewProgressReporter(os.Stderr, "Validating")
	progress.Start(int64(len(files)))
	for i, f := range files {
		// validate f
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Exit Codes:

ExitCode maps command errors to process exit codes. A RejectedError exits
with ExitRejected so CI jobs can tell rejected content from failures.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
