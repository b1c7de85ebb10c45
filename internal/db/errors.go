package db

import (
	"errors"
	"fmt"
)

// sqliteMisuse is the SQLITE_MISUSE result code, reported for operations
// submitted against a handle in the wrong lifecycle state.
const sqliteMisuse = 21

// Sentinel errors for Interrupt misuse. These are returned synchronously and
// never go through an operation completion.
var (
	ErrNotOpen = errors.New("seqlite: database is not open")
	ErrClosing = errors.New("seqlite: database is closing")
)

// MisuseError reports an operation submitted against a handle in the wrong
// lifecycle state (closed, or closing for operations that need the handle).
// It is always delivered through the operation's completion, or through the
// fallback error event when no completion was supplied; it is never fatal to
// the scheduler.
type MisuseError struct {
	Message string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("SQLITE_MISUSE: %s", e.Message)
}

// Code returns the SQLite result code for the misuse.
func (e *MisuseError) Code() int { return sqliteMisuse }

// IsMisuse reports whether err is (or wraps) a MisuseError.
func IsMisuse(err error) bool {
	var me *MisuseError
	return errors.As(err, &me)
}

// CallbackFault wraps a panic raised by a caller-supplied completion handler.
// Bookkeeping has already been adjusted by the time the handler runs, so the
// fault is propagated to the database's fault handler rather than swallowed.
type CallbackFault struct {
	Op    string // operation kind that was completing
	Value any    // recovered panic value
}

func (e *CallbackFault) Error() string {
	return fmt.Sprintf("seqlite: completion for %s operation panicked: %v", e.Op, e.Value)
}
