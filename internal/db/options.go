package db

import (
	"log/slog"
	"time"

	"github.com/roach88/seqlite/internal/native"
)

// Defaults applied by Open when no option overrides them.
const (
	// DefaultBusyTimeout matches the 1000ms the handle has always been
	// opened with.
	DefaultBusyTimeout = time.Second

	// DefaultPoolSize bounds how many blocking bodies run at once.
	DefaultPoolSize = 4

	// DefaultHookBuffer is the per-hook notification channel capacity.
	DefaultHookBuffer = 64
)

// connOpener acquires the native resource. Overridden in tests.
type connOpener func(filename string, flags native.OpenFlags, busyTimeout time.Duration) (Conn, error)

type options struct {
	busyTimeout time.Duration
	poolSize    int64
	hookBuffer  int
	flags       native.OpenFlags
	logger      *slog.Logger
	fault       func(any)
	opener      connOpener
}

func defaultOptions() options {
	return options{
		busyTimeout: DefaultBusyTimeout,
		poolSize:    DefaultPoolSize,
		hookBuffer:  DefaultHookBuffer,
		flags:       native.DefaultFlags,
		logger:      slog.Default(),
		opener: func(filename string, flags native.OpenFlags, busyTimeout time.Duration) (Conn, error) {
			return native.Open(filename, flags, busyTimeout)
		},
	}
}

// Option configures a Database at Open time.
type Option func(*options)

// WithBusyTimeout sets how long native calls wait on a locked database
// before failing with SQLITE_BUSY.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithPoolSize bounds the number of blocking operation bodies executing
// concurrently. Values below one are treated as one.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.poolSize = int64(n)
	}
}

// WithOpenFlags sets the open mode for the database file.
func WithOpenFlags(flags native.OpenFlags) Option {
	return func(o *options) { o.flags = flags }
}

// WithLogger routes the scheduler's structured logs.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFaultHandler receives panics raised by caller-supplied completion
// handlers. Without one, the fault is re-raised on the loop goroutine.
func WithFaultHandler(fn func(recovered any)) Option {
	return func(o *options) { o.fault = fn }
}

// withConnOpener substitutes the native resource acquisition. Test hook.
func withConnOpener(opener connOpener) Option {
	return func(o *options) { o.opener = opener }
}
