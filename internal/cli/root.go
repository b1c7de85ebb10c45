package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/seqlite/internal/db"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the seqlite CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "seqlite",
		Short: "seqlite - asynchronous, ordered SQLite access",
		Long:  "Run SQL batches and watch database notifications through the seqlite scheduler.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// openDatabase opens the configured database and blocks until the open
// operation completes, then loads any configured extensions in order.
func openDatabase(cfg *Config) (*db.Database, error) {
	var dbOpts []db.Option
	if cfg.BusyTimeoutMS > 0 {
		dbOpts = append(dbOpts, db.WithBusyTimeout(cfg.BusyTimeout()))
	}
	if cfg.PoolSize > 0 {
		dbOpts = append(dbOpts, db.WithPoolSize(cfg.PoolSize))
	}

	opened := make(chan error, 1)
	d := db.Open(cfg.Database, func(err error) { opened <- err }, dbOpts...)
	if err := <-opened; err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Database, err)
	}

	for _, ext := range cfg.Extensions {
		loaded := make(chan error, 1)
		d.LoadExtension(ext, func(err error) { loaded <- err })
		if err := <-loaded; err != nil {
			closeDatabase(d)
			return nil, fmt.Errorf("load extension %s: %w", ext, err)
		}
	}
	return d, nil
}

// closeDatabase closes the database and blocks until the close completes.
func closeDatabase(d *db.Database) error {
	closed := make(chan error, 1)
	d.Close(func(err error) { closed <- err })
	return <-closed
}
