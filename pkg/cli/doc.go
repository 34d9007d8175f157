/*
Package cli provides helpers shared by the pennywise command.

Output Formatting:

Admin commands print results as text, JSON or CSV. Tabular results are
passed as a Table so every format can render them:

	t := cli.Table{Headers: []string{"status", "count"}}
	t.Append("waiting", "3")
	if err := cli.NewFormatter(cli.FormatText).FormatTo(os.Stdout, t); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Errors:

ConfigError and CommandError carry the exit code chosen by ExitCode.
*/
package cli
