/*
Package cli provides command-line interface utilities for Guardrail.

The cli package includes output formatters, typed command errors, and the
shutdown signal helper used by the guardrail command.

Output Formatting:

The cli package supports text and JSON output for command results:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Command Errors:

Commands wrap failures in typed errors so the root command can map them to
process exit codes:

	// Evaluation concluded with a restriction: exit 1, not a crash.
	return cli.NewExitError(1, errors.New("restriction imposed"))

Progress Reporting:

Long-running commands such as bench report progress with a text bar:

	progress := cli.NewProgressReporter(os.Stdout)
	progress.Start(total)
	progress.Increment()
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	sig := <-cli.WaitForShutdown()
*/
package cli
