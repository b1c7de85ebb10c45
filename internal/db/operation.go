package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/seqlite/internal/native"
)

// Conn is the scheduler's view of the native resource. Implemented by
// *native.Conn in production and by stubs in tests.
type Conn interface {
	ExecBatch(sql string) error
	Query(sql string) (*native.Rows, error)
	Close() error
	Interrupt()
	BusyTimeout(d time.Duration) error
	Limit(id, value int) int
	LoadExtension(path string) error
	SetUpdateHook(fn func(op int, db, table string, rowid int64))
	SetTraceHook(fn func(sql string))
	SetProfileHook(fn func(sql string, elapsed time.Duration))
}

// opKind tags an operation with what it does. Payload fields on operation
// are populated per kind; there is no baton hierarchy.
type opKind uint8

const (
	opOpen opKind = iota + 1
	opClose
	opExec
	opQuery
	opWait
	opLoadExtension
	opBusyTimeout
	opLimit
	opTrace
	opProfile
	opChange
)

func (k opKind) String() string {
	switch k {
	case opOpen:
		return "open"
	case opClose:
		return "close"
	case opExec:
		return "exec"
	case opQuery:
		return "query"
	case opWait:
		return "wait"
	case opLoadExtension:
		return "loadExtension"
	case opBusyTimeout:
		return "busyTimeout"
	case opLimit:
		return "limit"
	case opTrace:
		return "trace"
	case opProfile:
		return "profile"
	case opChange:
		return "change"
	default:
		return "unknown"
	}
}

// operation is one unit of work submitted to the scheduler.
//
// Exactly one of body and run is set. body is the blocking action executed
// on a pool goroutine; run is a loop-synchronous action for operations that
// never block (wait, the configure family). begin, when set, is loop-side
// setup executed right before a body is dispatched.
//
// Ownership is single-holder at all times: the caller hands the operation to
// the scheduler, which holds it in the queue until admission, after which the
// dispatch path holds it until finish runs. complete is invoked at most once.
type operation struct {
	id        uuid.UUID
	kind      opKind
	exclusive bool

	body     func(conn Conn) error
	run      func()
	begin    func()
	complete func(err error)

	// payload, per kind; used for logging and error context
	sql  string
	path string
}

func newOperation(kind opKind, exclusive bool) *operation {
	return &operation{id: uuid.New(), kind: kind, exclusive: exclusive}
}
