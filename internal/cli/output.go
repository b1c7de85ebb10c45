package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/seqlite/internal/db"
)

// Process exit codes. Database-side failures (the SQL batch failed, the
// close failed) exit with ExitFailure; problems before the database is
// reached (flags, config, open) exit with ExitCommandError.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError pairs an error with the exit code the process should end with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError builds an ExitError with no underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and context to an underlying error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode reports the exit code carried by err. Plain errors count as
// ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Formatter renders command output as text lines or JSON objects.
type Formatter struct {
	Format string // "text" | "json"
	Writer io.Writer
}

// Line writes one already-formatted text line, or wraps it as JSON.
func (f *Formatter) Line(kind, text string) {
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(map[string]string{
			"event": kind,
			"text":  text,
		})
		return
	}
	fmt.Fprintln(f.Writer, text)
}

// Event line renderers. Kept free of timestamps so output is deterministic
// enough for golden tests.

func formatTrace(info db.TraceInfo) string {
	return fmt.Sprintf("trace: %s", info.SQL)
}

func formatProfile(info db.ProfileInfo) string {
	return fmt.Sprintf("profile: %s (%s)", info.SQL, info.Elapsed)
}

func formatChange(info db.ChangeInfo) string {
	return fmt.Sprintf("change: %s %s.%s rowid=%d",
		info.Kind, info.Database, info.Table, info.RowID)
}
