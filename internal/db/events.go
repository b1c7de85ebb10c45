package db

import (
	"sync"
	"time"

	"github.com/roach88/seqlite/internal/native"
)

// TraceInfo is the payload of a trace event: the SQL text of a statement
// that began executing.
type TraceInfo struct {
	SQL string
}

// ProfileInfo is the payload of a profile event: the SQL text of a finished
// statement and how long it took.
type ProfileInfo struct {
	SQL     string
	Elapsed time.Duration
}

// ChangeInfo is the payload of a change event: one row inserted, updated or
// deleted through this connection.
type ChangeInfo struct {
	Kind     string // "insert", "update" or "delete"
	Database string
	Table    string
	RowID    int64
}

// changeKind renders the native authorizer code as an event kind.
func changeKind(op int) string {
	switch op {
	case native.OpInsert:
		return "insert"
	case native.OpUpdate:
		return "update"
	case native.OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// emitter fans named notifications out to registered handlers.
//
// Registration may happen from any goroutine. Emission normally happens on
// the loop; the one exception is the error event fired on the caller's
// goroutine when an operation is submitted after the database has closed,
// which is why the handler slices are guarded.
type emitter struct {
	mu      sync.Mutex
	open    []func()
	close   []func()
	err     []func(error)
	trace   []func(TraceInfo)
	profile []func(ProfileInfo)
	change  []func(ChangeInfo)
}

func (e *emitter) onOpen(fn func())             { e.mu.Lock(); e.open = append(e.open, fn); e.mu.Unlock() }
func (e *emitter) onClose(fn func())            { e.mu.Lock(); e.close = append(e.close, fn); e.mu.Unlock() }
func (e *emitter) onError(fn func(error))       { e.mu.Lock(); e.err = append(e.err, fn); e.mu.Unlock() }
func (e *emitter) onTrace(fn func(TraceInfo))   { e.mu.Lock(); e.trace = append(e.trace, fn); e.mu.Unlock() }
func (e *emitter) onProfile(fn func(ProfileInfo)) {
	e.mu.Lock()
	e.profile = append(e.profile, fn)
	e.mu.Unlock()
}
func (e *emitter) onChange(fn func(ChangeInfo)) {
	e.mu.Lock()
	e.change = append(e.change, fn)
	e.mu.Unlock()
}

func (e *emitter) emitOpen() {
	for _, fn := range e.snapshotOpen() {
		fn()
	}
}

func (e *emitter) emitClose() {
	for _, fn := range e.snapshotClose() {
		fn()
	}
}

func (e *emitter) emitError(err error) {
	e.mu.Lock()
	handlers := append(([]func(error))(nil), e.err...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(err)
	}
}

func (e *emitter) emitTrace(info TraceInfo) {
	e.mu.Lock()
	handlers := append(([]func(TraceInfo))(nil), e.trace...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(info)
	}
}

func (e *emitter) emitProfile(info ProfileInfo) {
	e.mu.Lock()
	handlers := append(([]func(ProfileInfo))(nil), e.profile...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(info)
	}
}

func (e *emitter) emitChange(info ChangeInfo) {
	e.mu.Lock()
	handlers := append(([]func(ChangeInfo))(nil), e.change...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn(info)
	}
}

func (e *emitter) snapshotOpen() []func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(([]func())(nil), e.open...)
}

func (e *emitter) snapshotClose() []func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(([]func())(nil), e.close...)
}
