package db

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/seqlite/internal/native"
)

// Database schedules asynchronous, ordered work against one SQLite handle.
//
// All public methods are safe to call from any goroutine and never block on
// the handle; completions run on the database's loop goroutine, one at a
// time. A completion may itself submit further operations.
type Database struct {
	filename string
	opts     options
	logger   *slog.Logger
	events   *emitter
	intake   *intakeQueue
	sem      *semaphore.Weighted

	// loop-only state
	queue opQueue
	state state

	traceRelay   *relay[string]
	profileRelay *relay[profileSample]
	changeRelay  *relay[changeSample]

	connMu sync.Mutex
	connV  Conn

	done chan struct{} // closed when the loop exits
}

// Open constructs a Database and schedules the open operation immediately.
// cb, if non-nil, receives the open result; an open failure with no cb is
// raised as an error event. Operations may be submitted right away; they
// queue behind the open.
func Open(filename string, cb func(error), opts ...Option) *Database {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Database{
		filename: filename,
		opts:     o,
		logger:   o.logger.With("db", filename),
		events:   &emitter{},
		intake:   newIntakeQueue(),
		sem:      semaphore.NewWeighted(o.poolSize),
		done:     make(chan struct{}),
	}

	op := newOperation(opOpen, false)
	op.complete = cb
	op.body = func(Conn) error {
		conn, err := o.opener(filename, o.flags, o.busyTimeout)
		if err != nil {
			return err
		}
		d.setConn(conn)
		return nil
	}

	go d.run()
	// The open bypasses schedule: nothing is admitted before open is true,
	// and the pending counter stays at zero so the first exclusive
	// operation can start as soon as the handle exists.
	d.post(func() { d.dispatch(op) })
	return d
}

// run is the single-writer loop. All scheduler state is touched only here.
func (d *Database) run() {
	defer close(d.done)
	for {
		if cmd, ok := d.intake.tryDequeue(); ok {
			cmd()
			continue
		}
		if d.intake.isClosed() {
			return
		}
		<-d.intake.wait()
	}
}

// post hands a command to the loop. Never blocks. Returns false once the
// database has permanently closed and the loop is gone.
func (d *Database) post(cmd func()) bool {
	return d.intake.enqueue(cmd)
}

// submit routes an operation to the loop's scheduler, or fails it
// synchronously when the loop has already shut down.
func (d *Database) submit(op *operation) {
	if !d.post(func() { d.schedule(op) }) {
		d.failClosed(op, "Database is closed")
	}
}

func (d *Database) conn() Conn {
	d.connMu.Lock()
	defer d.connMu.Unlock()
	return d.connV
}

func (d *Database) setConn(c Conn) {
	d.connMu.Lock()
	d.connV = c
	d.connMu.Unlock()
}

// Filename returns the path the database was opened with.
func (d *Database) Filename() string { return d.filename }

// IsOpen reports whether the handle is currently open.
func (d *Database) IsOpen() bool { return d.state.openMirror.Load() }

// OnOpen registers a handler for the open event.
func (d *Database) OnOpen(fn func()) { d.events.onOpen(fn) }

// OnClose registers a handler for the close event.
func (d *Database) OnClose(fn func()) { d.events.onClose(fn) }

// OnError registers a handler for the fallback error event, raised when an
// operation fails and no completion was supplied.
func (d *Database) OnError(fn func(error)) { d.events.onError(fn) }

// OnTrace registers a handler for trace notifications.
func (d *Database) OnTrace(fn func(TraceInfo)) { d.events.onTrace(fn) }

// OnProfile registers a handler for profile notifications.
func (d *Database) OnProfile(fn func(ProfileInfo)) { d.events.onProfile(fn) }

// OnChange registers a handler for row-change notifications.
func (d *Database) OnChange(fn func(ChangeInfo)) { d.events.onChange(fn) }

// Exec schedules a raw SQL batch. Exclusive: it starts only when nothing
// else is in flight.
func (d *Database) Exec(sql string, cb func(error)) {
	op := newOperation(opExec, true)
	op.sql = sql
	op.complete = cb
	op.body = func(conn Conn) error { return conn.ExecBatch(sql) }
	d.submit(op)
}

// Query schedules a one-shot read. Non-exclusive: queries may overlap each
// other, but never an exclusive operation.
func (d *Database) Query(sql string, cb func(*native.Rows, error)) {
	op := newOperation(opQuery, false)
	op.sql = sql
	var rows *native.Rows
	op.body = func(conn Conn) error {
		var err error
		rows, err = conn.Query(sql)
		return err
	}
	if cb != nil {
		op.complete = func(err error) {
			if err != nil {
				cb(nil, err)
				return
			}
			cb(rows, nil)
		}
	}
	d.submit(op)
}

// Wait schedules an exclusive barrier: its completion fires once everything
// admitted before it has finished.
func (d *Database) Wait(cb func(error)) {
	op := newOperation(opWait, true)
	op.complete = cb
	op.run = func() {
		if op.complete != nil {
			d.runCompletion(op, nil)
		}
		d.process()
	}
	d.submit(op)
}

// LoadExtension schedules loading a SQLite extension. Exclusive.
func (d *Database) LoadExtension(path string, cb func(error)) {
	op := newOperation(opLoadExtension, true)
	op.path = path
	op.complete = cb
	op.body = func(conn Conn) error { return conn.LoadExtension(path) }
	d.submit(op)
}

// BusyTimeout schedules a busy-timeout change. Non-exclusive.
func (d *Database) BusyTimeout(timeout time.Duration, cb func(error)) {
	op := newOperation(opBusyTimeout, false)
	op.complete = cb
	op.run = func() { d.report(op, d.conn().BusyTimeout(timeout)) }
	d.submit(op)
}

// Limit schedules a per-connection runtime limit change. Non-exclusive.
func (d *Database) Limit(id, value int, cb func(error)) {
	op := newOperation(opLimit, false)
	op.complete = cb
	op.run = func() {
		d.conn().Limit(id, value)
		d.report(op, nil)
	}
	d.submit(op)
}

// Trace toggles the trace subscription: off→on registers the hook, on→off
// unregisters it and drains its channel before the completion fires.
func (d *Database) Trace(cb func(error)) {
	op := newOperation(opTrace, false)
	op.complete = cb
	op.run = func() {
		d.toggleTrace()
		d.report(op, nil)
	}
	d.submit(op)
}

// Profile toggles the profile subscription.
func (d *Database) Profile(cb func(error)) {
	op := newOperation(opProfile, false)
	op.complete = cb
	op.run = func() {
		d.toggleProfile()
		d.report(op, nil)
	}
	d.submit(op)
}

// Change toggles the row-change subscription.
func (d *Database) Change(cb func(error)) {
	op := newOperation(opChange, false)
	op.complete = cb
	op.run = func() {
		d.toggleChange()
		d.report(op, nil)
	}
	d.submit(op)
}

// Serialize biases admission so every operation is ordered as if exclusive.
// With a scope function the bias covers exactly the operations fn submits
// and the previous mode is restored afterwards; without one the change is
// permanent.
func (d *Database) Serialize(fn func()) { d.setMode(true, fn) }

// Parallelize removes the serialize bias, scoped the same way as Serialize.
func (d *Database) Parallelize(fn func()) { d.setMode(false, fn) }

func (d *Database) setMode(mode bool, fn func()) {
	var before bool
	if !d.post(func() { before = d.state.serialize; d.state.serialize = mode }) {
		// Loop gone: the mode is irrelevant, but the scope function still
		// runs so its submissions fail through the ordinary closed path.
		if fn != nil {
			fn()
		}
		return
	}
	if fn != nil {
		// fn's submissions land on the intake queue between the set and
		// the restore, so FIFO ordering makes the scope window exact.
		fn()
		d.post(func() {
			d.state.serialize = before
			d.process()
		})
		return
	}
	d.post(func() { d.process() })
}

// Close schedules the final, exclusive close. Before the handle is released
// every diagnostic subscription is unregistered and drained. After a
// successful close the database is permanently finished: anything still
// queued or submitted later fails with a misuse error.
func (d *Database) Close(cb func(error)) {
	op := newOperation(opClose, true)
	op.complete = cb
	op.begin = func() {
		d.removeHooks()
		d.state.setClosing(true)
	}
	op.body = func(conn Conn) error { return conn.Close() }
	d.submit(op)
}

// Interrupt aborts whatever is currently executing on the handle. It is not
// scheduled: it takes effect immediately, and it fails fast when the
// database is not open or is in its closing window.
func (d *Database) Interrupt() error {
	if !d.state.openMirror.Load() {
		return ErrNotOpen
	}
	if d.state.closingMirror.Load() {
		return ErrClosing
	}
	if c := d.conn(); c != nil {
		c.Interrupt()
	}
	return nil
}

// finishOpen completes the open operation. On failure the database is sealed
// immediately so queued operations drain-fail instead of waiting forever.
func (d *Database) finishOpen(op *operation, err error) {
	if err != nil {
		d.logger.Error("open failed", "error", err)
		if op.complete != nil {
			d.runCompletion(op, err)
		} else {
			d.events.emitError(err)
		}
		d.state.seal()
		d.process()
		d.shutdown()
		return
	}

	d.state.setOpen(true)
	d.logger.Info("database open")
	if op.complete != nil {
		d.runCompletion(op, nil)
	}
	d.events.emitOpen()
	d.process()
}

// finishClose completes the close operation. Success seals the database:
// open becomes false while locked stays true forever.
func (d *Database) finishClose(op *operation, err error) {
	d.state.pending--
	d.state.setClosing(false)

	if err != nil {
		// The handle survived; the database stays usable.
		d.state.locked = false
		d.logger.Error("close failed", "error", err)
		d.report(op, err)
		d.process()
		return
	}

	d.state.seal()
	d.setConn(nil)
	d.logger.Info("database closed")
	if op.complete != nil {
		d.runCompletion(op, nil)
	}
	d.events.emitClose()
	d.process()
	d.shutdown()
}

// shutdown closes the intake queue; the loop drains what is left and exits.
func (d *Database) shutdown() {
	d.intake.close()
}
