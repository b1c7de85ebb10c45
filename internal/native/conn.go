package native

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Conn owns a single SQLite connection handle.
//
// Blocking calls (ExecBatch, Query, LoadExtension, Close) are expected to run
// off the scheduler loop; Interrupt and the hook setters may be called from
// the loop while blocking calls are in flight, which is why the cancel
// registry and the hook slots are guarded.
type Conn struct {
	raw *sqlite3.SQLiteConn

	mu       sync.Mutex
	cancels  map[uint64]context.CancelFunc // one entry per in-flight statement
	nextCall uint64
	trace    func(sql string)
	profile  func(sql string, elapsed time.Duration)

	updateMu   sync.Mutex
	updateHook func(op int, db, table string, rowid int64)
	updateSet  bool // trampoline registered with the driver
}

// Open acquires a new connection handle. busyTimeout <= 0 leaves the
// driver default in place.
func Open(filename string, flags OpenFlags, busyTimeout time.Duration) (*Conn, error) {
	drv := &sqlite3.SQLiteDriver{}
	raw, err := drv.Open(dsn(filename, flags))
	if err != nil {
		return nil, wrap(err)
	}
	conn, ok := raw.(*sqlite3.SQLiteConn)
	if !ok {
		raw.Close()
		return nil, &Error{Code: -1, Message: "driver returned unexpected connection type", Offset: -1}
	}
	c := &Conn{raw: conn, cancels: make(map[uint64]context.CancelFunc)}
	if busyTimeout > 0 {
		if err := c.BusyTimeout(busyTimeout); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return c, nil
}

// ExecBatch runs one or more SQL statements. The driver steps through the
// batch statement by statement; the first failure aborts the rest.
func (c *Conn) ExecBatch(sql string) error {
	ctx, done := c.beginCall()
	defer done()

	start := time.Now()
	c.fireTrace(sql)
	_, err := c.raw.ExecContext(ctx, sql, nil)
	c.fireProfile(sql, time.Since(start))
	return wrap(err)
}

// Query runs a single read statement and materializes every row.
func (c *Conn) Query(sql string) (*Rows, error) {
	ctx, done := c.beginCall()
	defer done()

	start := time.Now()
	c.fireTrace(sql)
	rows, err := c.raw.QueryContext(ctx, sql, nil)
	if err != nil {
		c.fireProfile(sql, time.Since(start))
		return nil, wrap(err)
	}
	defer rows.Close()

	cols := rows.Columns()
	out := &Rows{Columns: append([]string(nil), cols...)}
	buf := make([]driver.Value, len(cols))
	for {
		if err := rows.Next(buf); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			c.fireProfile(sql, time.Since(start))
			return nil, wrap(err)
		}
		row := make(Row, len(buf))
		for i, v := range buf {
			row[i] = v
		}
		out.Rows = append(out.Rows, row)
	}
	c.fireProfile(sql, time.Since(start))
	return out, nil
}

// Close releases the handle. Safe to call once; the scheduler guarantees no
// other call is in flight.
func (c *Conn) Close() error {
	return wrap(c.raw.Close())
}

// Interrupt aborts every statement currently in flight. Non-exclusive calls
// may overlap, so each one is cancelled, matching sqlite3_interrupt's
// handle-wide effect. Safe to call from any goroutine; the driver translates
// the context cancellation into sqlite3_interrupt.
func (c *Conn) Interrupt() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.cancels))
	for _, cancel := range c.cancels {
		cancels = append(cancels, cancel)
	}
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// BusyTimeout sets how long the handle waits on a locked database before
// returning SQLITE_BUSY.
func (c *Conn) BusyTimeout(d time.Duration) error {
	_, err := c.raw.ExecContext(context.Background(),
		fmt.Sprintf("PRAGMA busy_timeout = %d", d.Milliseconds()), nil)
	return wrap(err)
}

// Limit adjusts a per-connection runtime limit and returns the prior value.
func (c *Conn) Limit(id, value int) int {
	return c.raw.SetLimit(id, value)
}

// LoadExtension loads a SQLite extension from the given path. Extension
// loading is enabled only for the duration of the call.
func (c *Conn) LoadExtension(path string) error {
	return wrap(c.raw.LoadExtension(path, ""))
}

// SetUpdateHook installs or removes (fn == nil) the row-change notification
// hook. The hook fires on the goroutine executing the mutating statement.
func (c *Conn) SetUpdateHook(fn func(op int, db, table string, rowid int64)) {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()
	c.updateHook = fn
	if !c.updateSet {
		c.updateSet = true
		c.raw.RegisterUpdateHook(func(op int, db, table string, rowid int64) {
			c.updateMu.Lock()
			hook := c.updateHook
			c.updateMu.Unlock()
			if hook != nil {
				hook(op, db, table, rowid)
			}
		})
	}
}

// SetTraceHook installs or removes (fn == nil) the statement trace hook.
// The hook fires once per ExecBatch/Query call, before execution, on the
// goroutine executing the statement.
func (c *Conn) SetTraceHook(fn func(sql string)) {
	c.mu.Lock()
	c.trace = fn
	c.mu.Unlock()
}

// SetProfileHook installs or removes (fn == nil) the statement profile hook.
// The hook fires once per ExecBatch/Query call, after execution, with the
// elapsed wall time.
func (c *Conn) SetProfileHook(fn func(sql string, elapsed time.Duration)) {
	c.mu.Lock()
	c.profile = fn
	c.mu.Unlock()
}

// beginCall arms the interrupt window for a blocking statement. Each call
// gets its own registry entry so a finishing call never disarms another
// still in flight.
func (c *Conn) beginCall() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	id := c.nextCall
	c.nextCall++
	c.cancels[id] = cancel
	c.mu.Unlock()
	return ctx, func() {
		c.mu.Lock()
		delete(c.cancels, id)
		c.mu.Unlock()
		cancel()
	}
}

func (c *Conn) fireTrace(sql string) {
	c.mu.Lock()
	fn := c.trace
	c.mu.Unlock()
	if fn != nil {
		fn(sql)
	}
}

func (c *Conn) fireProfile(sql string, elapsed time.Duration) {
	c.mu.Lock()
	fn := c.profile
	c.mu.Unlock()
	if fn != nil {
		fn(sql, elapsed)
	}
}

// wrap converts driver errors into *Error, preserving the SQLite result code.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return &Error{Code: int(se.Code), Message: se.Error(), Offset: -1}
	}
	return &Error{Code: -1, Message: err.Error(), Offset: -1}
}
