/*
Package cli provides helpers shared by the warden commands.

Tabular output is rendered as aligned text, JSON or YAML:

	table := cli.NewTable("SERVICE", "NAME", "USERS")
	table.Append("billing", "api-calls", "2")
	if err := cli.NewFormatter(cli.FormatText).Write(os.Stdout, table); err != nil {
		return err
	}

Commands that run until interrupted derive their context from the
process signals:

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

ExitCode maps a command error to the process exit status.
*/
package cli
