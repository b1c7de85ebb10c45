package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/seqlite/internal/db"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	Database string
	Profile  bool
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <sql>",
		Short: "Run a raw SQL batch",
		Long: `Run one or more SQL statements against the database.

The batch is scheduled as a single exclusive operation: it starts only once
nothing else is in flight, and nothing else starts while it runs.

Example:
  seqlite exec --db ./app.db "CREATE TABLE t (id INTEGER); INSERT INTO t VALUES (1);"
  seqlite exec --config seqlite.yaml --profile "VACUUM;"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite database")
	cmd.Flags().BoolVar(&opts.Profile, "profile", false, "print statement timings")

	return cmd
}

func runExec(opts *ExecOptions, sql string, out io.Writer) error {
	cfg, err := resolveConfig(opts.ConfigPath, opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	d, err := openDatabase(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}

	fmtr := &Formatter{Format: opts.Format, Writer: out}
	if opts.Profile {
		d.OnProfile(func(info db.ProfileInfo) {
			fmtr.Line("profile", formatProfile(info))
		})
		if err := toggle(d.Profile); err != nil {
			closeDatabase(d)
			return WrapExitError(ExitCommandError, "failed to enable profiling", err)
		}
	}

	execDone := make(chan error, 1)
	d.Exec(sql, func(err error) { execDone <- err })
	execErr := <-execDone

	if closeErr := closeDatabase(d); closeErr != nil && execErr == nil {
		return WrapExitError(ExitFailure, "failed to close database", closeErr)
	}
	if execErr != nil {
		return WrapExitError(ExitFailure, "exec failed", execErr)
	}

	fmtr.Line("ok", "ok")
	return nil
}

// toggle flips a hook subscription and waits for the toggle to complete.
func toggle(fn func(cb func(error))) error {
	done := make(chan error, 1)
	fn(func(err error) { done <- err })
	return <-done
}
