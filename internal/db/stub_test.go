package db

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/seqlite/internal/native"
)

// stubConn is a controllable native resource for scheduler tests. Each
// ExecBatch/Query call records its SQL in start order and then blocks on a
// per-SQL gate if one was armed, so tests can hold operations in flight.
type stubConn struct {
	mu          sync.Mutex
	starts      []string
	gates       map[string]chan struct{}
	failWith    map[string]error
	closed      bool
	closeGate   chan struct{}
	closeErr    error
	interrupts  int
	busyTimeout time.Duration
	limits      map[int]int
	extensions  []string

	traceHook   func(string)
	profileHook func(string, time.Duration)
	updateHook  func(int, string, string, int64)
}

func newStubConn() *stubConn {
	return &stubConn{
		gates:    make(map[string]chan struct{}),
		failWith: make(map[string]error),
		limits:   make(map[int]int),
	}
}

// gate arms a gate for the given SQL; the call blocks until the returned
// channel is closed.
func (c *stubConn) gate(sql string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{})
	c.gates[sql] = ch
	return ch
}

func (c *stubConn) call(sql string) error {
	c.mu.Lock()
	c.starts = append(c.starts, sql)
	gate := c.gates[sql]
	err := c.failWith[sql]
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (c *stubConn) startOrder() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.starts...)
}

func (c *stubConn) started(sql string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.starts {
		if s == sql {
			return true
		}
	}
	return false
}

func (c *stubConn) ExecBatch(sql string) error { return c.call(sql) }

func (c *stubConn) Query(sql string) (*native.Rows, error) {
	if err := c.call(sql); err != nil {
		return nil, err
	}
	return &native.Rows{Columns: []string{"sql"}, Rows: []native.Row{{sql}}}, nil
}

func (c *stubConn) Close() error {
	c.mu.Lock()
	gate := c.closeGate
	err := c.closeErr
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *stubConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *stubConn) Interrupt() {
	c.mu.Lock()
	c.interrupts++
	c.mu.Unlock()
}

func (c *stubConn) BusyTimeout(d time.Duration) error {
	c.mu.Lock()
	c.busyTimeout = d
	c.mu.Unlock()
	return nil
}

func (c *stubConn) Limit(id, value int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.limits[id]
	c.limits[id] = value
	return prev
}

func (c *stubConn) LoadExtension(path string) error {
	c.mu.Lock()
	c.extensions = append(c.extensions, path)
	c.mu.Unlock()
	return nil
}

func (c *stubConn) SetUpdateHook(fn func(int, string, string, int64)) {
	c.mu.Lock()
	c.updateHook = fn
	c.mu.Unlock()
}

func (c *stubConn) SetTraceHook(fn func(string)) {
	c.mu.Lock()
	c.traceHook = fn
	c.mu.Unlock()
}

func (c *stubConn) SetProfileHook(fn func(string, time.Duration)) {
	c.mu.Lock()
	c.profileHook = fn
	c.mu.Unlock()
}

func (c *stubConn) getTraceHook() func(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.traceHook
}

func (c *stubConn) getProfileHook() func(string, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profileHook
}

func (c *stubConn) getUpdateHook() func(int, string, string, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateHook
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB opens a Database over the stub and waits for the open to
// complete.
func newTestDB(t *testing.T, conn Conn, opts ...Option) *Database {
	t.Helper()
	opened := make(chan error, 1)
	opts = append(opts,
		WithLogger(discardLogger()),
		withConnOpener(func(string, native.OpenFlags, time.Duration) (Conn, error) {
			return conn, nil
		}),
	)
	d := Open("test.db", func(err error) { opened <- err }, opts...)
	require.NoError(t, waitErr(t, opened), "open should succeed")
	return d
}

// waitErr receives a completion result with a timeout.
func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return nil
	}
}

// waitStarted blocks until the stub has begun executing the given SQL.
func waitStarted(t *testing.T, c *stubConn, sql string) {
	t.Helper()
	require.Eventually(t, func() bool { return c.started(sql) },
		2*time.Second, time.Millisecond, "operation %q never started", sql)
}
