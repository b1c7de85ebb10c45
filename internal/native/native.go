// Package native is the boundary to the underlying SQLite connection handle.
//
// Everything above this package treats the connection as an opaque, stateful
// resource: blocking calls (exec, query, close, extension loading) and a small
// set of synchronous configuration knobs (busy timeout, limits, hooks). The
// scheduling discipline (who may call what, and when) lives in internal/db;
// this package only guarantees that each individual call is faithful to the
// SQLite semantics exposed by mattn/go-sqlite3.
//
// The handle is opened with SQLite's serialized threading mode (the driver's
// default), so overlapping calls from pool goroutines are serialized at the C
// level. Ordering between calls is still the scheduler's job.
package native

import (
	"fmt"
	"strings"
)

// OpenFlags selects how the database file is opened.
// The zero value is ReadWrite|Create, matching the upstream default.
type OpenFlags int

const (
	// OpenReadWrite opens the database for reading and writing.
	OpenReadWrite OpenFlags = 1 << iota
	// OpenCreate creates the database file if it does not exist.
	OpenCreate
	// OpenReadOnly opens the database read-only. Mutually exclusive with
	// OpenReadWrite and OpenCreate.
	OpenReadOnly
	// OpenMemory opens a private in-memory database.
	OpenMemory
)

// DefaultFlags is the open mode used when the caller supplies none.
const DefaultFlags = OpenReadWrite | OpenCreate

// dsn builds the driver connection string for a filename and flag set.
func dsn(filename string, flags OpenFlags) string {
	var params []string
	switch {
	case flags&OpenMemory != 0:
		params = append(params, "mode=memory")
	case flags&OpenReadOnly != 0:
		params = append(params, "mode=ro")
	case flags&OpenCreate != 0:
		params = append(params, "mode=rwc")
	default:
		params = append(params, "mode=rw")
	}
	if len(params) == 0 {
		return filename
	}
	return "file:" + filename + "?" + strings.Join(params, "&")
}

// Limit identifiers, matching the SQLITE_LIMIT_* constants. The numeric
// values are part of the stable SQLite ABI.
const (
	LimitLength            = 0
	LimitSQLLength         = 1
	LimitColumn            = 2
	LimitExprDepth         = 3
	LimitCompoundSelect    = 4
	LimitVDBEOp            = 5
	LimitFunctionArg       = 6
	LimitAttached          = 7
	LimitLikePatternLength = 8
	LimitVariableNumber    = 9
	LimitTriggerDepth      = 10
	LimitWorkerThreads     = 11
)

// Row-change operation codes reported by the update hook, matching the
// SQLITE_INSERT / SQLITE_DELETE / SQLITE_UPDATE authorizer constants.
const (
	OpDelete = 9
	OpInsert = 18
	OpUpdate = 23
)

// Row is a single result row, column values in column order.
type Row []any

// Rows is a fully materialized query result.
type Rows struct {
	Columns []string
	Rows    []Row
}

// Error reports a failed native call. Code is the SQLite result code.
// Offset is the byte offset into the SQL text where the error was detected,
// or -1 when the driver does not surface one.
type Error struct {
	Code    int
	Message string
	Offset  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("sqlite error %d: %s", e.Code, e.Message)
}
