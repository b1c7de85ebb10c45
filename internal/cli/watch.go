package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/seqlite/internal/db"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database string
	Trace    bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream row-change notifications",
		Long: `Subscribe to row-change notifications (and optionally statement traces)
on the database and print them until interrupted.

Only changes made through this connection are reported.

Example:
  seqlite watch --db ./app.db
  seqlite watch --db ./app.db --trace`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite database")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "also print statement traces")

	return cmd
}

func runWatch(opts *WatchOptions, parent context.Context, out io.Writer) error {
	cfg, err := resolveConfig(opts.ConfigPath, opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	d, err := openDatabase(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}

	fmtr := &Formatter{Format: opts.Format, Writer: out}
	d.OnChange(func(info db.ChangeInfo) {
		fmtr.Line("change", formatChange(info))
	})
	if err := toggle(d.Change); err != nil {
		closeDatabase(d)
		return WrapExitError(ExitCommandError, "failed to subscribe to changes", err)
	}

	if opts.Trace {
		d.OnTrace(func(info db.TraceInfo) {
			fmtr.Line("trace", formatTrace(info))
		})
		if err := toggle(d.Trace); err != nil {
			closeDatabase(d)
			return WrapExitError(ExitCommandError, "failed to subscribe to traces", err)
		}
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if err := closeDatabase(d); err != nil {
		return WrapExitError(ExitFailure, "failed to close database", err)
	}
	return nil
}
