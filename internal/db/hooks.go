package db

import (
	"sync"
	"time"
)

// relay carries diagnostic notifications from pool goroutines to the loop.
//
// It is a bounded single-producer/single-consumer channel with a forwarder
// goroutine on the receiving end. The producer side is guarded so that a
// hook firing on a pool goroutine can never race teardown: finish marks the
// relay closed under the same lock the sender takes, so no send can happen
// after the channel is closed. finish then waits for the forwarder to drain
// whatever was already published.
type relay[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
	done   chan struct{}
}

func newRelay[T any](buf int, deliver func(T)) *relay[T] {
	r := &relay[T]{ch: make(chan T, buf), done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for v := range r.ch {
			deliver(v)
		}
	}()
	return r
}

// send publishes a notification. No-op after finish. Called from pool
// goroutines; may block briefly when the channel is full, never deadlocks
// because the forwarder drains independently of the loop.
func (r *relay[T]) send(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.ch <- v
}

// finish closes the relay and blocks until the forwarder has drained it.
// Must be called only after the native hook feeding send has been removed.
func (r *relay[T]) finish() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.ch)
	r.mu.Unlock()
	<-r.done
}

type profileSample struct {
	sql     string
	elapsed time.Duration
}

type changeSample struct {
	op       int
	database string
	table    string
	rowid    int64
}

// toggleTrace flips the trace subscription: register the native hook and the
// relay when off, unregister and drain when on. Loop only.
func (d *Database) toggleTrace() {
	if d.traceRelay == nil {
		r := newRelay(d.opts.hookBuffer, func(sql string) {
			d.post(func() { d.events.emitTrace(TraceInfo{SQL: sql}) })
		})
		d.traceRelay = r
		d.conn().SetTraceHook(r.send)
		return
	}
	d.conn().SetTraceHook(nil)
	d.traceRelay.finish()
	d.traceRelay = nil
}

// toggleProfile flips the profile subscription. Loop only.
func (d *Database) toggleProfile() {
	if d.profileRelay == nil {
		r := newRelay(d.opts.hookBuffer, func(s profileSample) {
			d.post(func() { d.events.emitProfile(ProfileInfo{SQL: s.sql, Elapsed: s.elapsed}) })
		})
		d.profileRelay = r
		d.conn().SetProfileHook(func(sql string, elapsed time.Duration) {
			r.send(profileSample{sql: sql, elapsed: elapsed})
		})
		return
	}
	d.conn().SetProfileHook(nil)
	d.profileRelay.finish()
	d.profileRelay = nil
}

// toggleChange flips the row-change subscription. Loop only.
func (d *Database) toggleChange() {
	if d.changeRelay == nil {
		r := newRelay(d.opts.hookBuffer, func(s changeSample) {
			d.post(func() {
				d.events.emitChange(ChangeInfo{
					Kind:     changeKind(s.op),
					Database: s.database,
					Table:    s.table,
					RowID:    s.rowid,
				})
			})
		})
		d.changeRelay = r
		d.conn().SetUpdateHook(func(op int, db, table string, rowid int64) {
			r.send(changeSample{op: op, database: db, table: table, rowid: rowid})
		})
		return
	}
	d.conn().SetUpdateHook(nil)
	d.changeRelay.finish()
	d.changeRelay = nil
}

// removeHooks unregisters every active subscription and drains its channel.
// Runs on the loop right before the close body releases the handle, so no
// hook can fire against a freed resource.
func (d *Database) removeHooks() {
	if d.traceRelay != nil {
		d.conn().SetTraceHook(nil)
		d.traceRelay.finish()
		d.traceRelay = nil
	}
	if d.profileRelay != nil {
		d.conn().SetProfileHook(nil)
		d.profileRelay.finish()
		d.profileRelay = nil
	}
	if d.changeRelay != nil {
		d.conn().SetUpdateHook(nil)
		d.changeRelay.finish()
		d.changeRelay = nil
	}
}
