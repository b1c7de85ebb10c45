package native

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Conn {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "test.db"), DefaultFlags, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestConn_ExecAndQuery(t *testing.T) {
	c := openTemp(t)

	require.NoError(t, c.ExecBatch(
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT); "+
			"INSERT INTO users (name) VALUES ('alice'); "+
			"INSERT INTO users (name) VALUES ('bob');"))

	rows, err := c.Query("SELECT id, name FROM users ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, rows.Columns)
	require.Len(t, rows.Rows, 2)
	assert.Equal(t, int64(1), rows.Rows[0][0])
	assert.Equal(t, "alice", rows.Rows[0][1])
	assert.Equal(t, "bob", rows.Rows[1][1])
}

func TestConn_QueryEmptyResult(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.ExecBatch("CREATE TABLE empty (v TEXT)"))

	rows, err := c.Query("SELECT v FROM empty")
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, rows.Columns)
	assert.Empty(t, rows.Rows)
}

func TestConn_ErrorCarriesResultCode(t *testing.T) {
	c := openTemp(t)

	err := c.ExecBatch("SELEC 1")
	require.Error(t, err)
	var ne *Error
	require.ErrorAs(t, err, &ne)
	assert.NotZero(t, ne.Code)
	assert.Equal(t, -1, ne.Offset)
	assert.Contains(t, ne.Message, "syntax error")
}

func TestConn_MemoryDatabase(t *testing.T) {
	c, err := Open("scratch", OpenMemory, 0)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.ExecBatch("CREATE TABLE t (v INTEGER); INSERT INTO t VALUES (7)"))
	rows, err := c.Query("SELECT v FROM t")
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, int64(7), rows.Rows[0][0])
}

func TestConn_UpdateHook(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.ExecBatch("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)"))

	var mu sync.Mutex
	type change struct {
		op    int
		db    string
		table string
		rowid int64
	}
	var changes []change
	c.SetUpdateHook(func(op int, db, table string, rowid int64) {
		mu.Lock()
		changes = append(changes, change{op, db, table, rowid})
		mu.Unlock()
	})

	require.NoError(t, c.ExecBatch("INSERT INTO users (name) VALUES ('alice')"))
	require.NoError(t, c.ExecBatch("UPDATE users SET name = 'bob' WHERE id = 1"))
	require.NoError(t, c.ExecBatch("DELETE FROM users WHERE id = 1"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 3)
	assert.Equal(t, change{OpInsert, "main", "users", 1}, changes[0])
	assert.Equal(t, change{OpUpdate, "main", "users", 1}, changes[1])
	assert.Equal(t, change{OpDelete, "main", "users", 1}, changes[2])
}

func TestConn_UpdateHookRemoval(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.ExecBatch("CREATE TABLE t (v INTEGER)"))

	var mu sync.Mutex
	fired := 0
	c.SetUpdateHook(func(int, string, string, int64) {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	require.NoError(t, c.ExecBatch("INSERT INTO t VALUES (1)"))

	c.SetUpdateHook(nil)
	require.NoError(t, c.ExecBatch("INSERT INTO t VALUES (2)"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fired)
}

func TestConn_TraceAndProfileHooks(t *testing.T) {
	c := openTemp(t)

	var mu sync.Mutex
	var traced []string
	var profiled []string
	c.SetTraceHook(func(sql string) {
		mu.Lock()
		traced = append(traced, sql)
		mu.Unlock()
	})
	c.SetProfileHook(func(sql string, elapsed time.Duration) {
		mu.Lock()
		profiled = append(profiled, sql)
		mu.Unlock()
		assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	})

	require.NoError(t, c.ExecBatch("CREATE TABLE t (v INTEGER)"))
	_, err := c.Query("SELECT v FROM t")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"CREATE TABLE t (v INTEGER)", "SELECT v FROM t"}, traced)
	assert.Equal(t, traced, profiled)

	c.SetTraceHook(nil)
	c.SetProfileHook(nil)
}

func TestConn_Limit(t *testing.T) {
	c := openTemp(t)

	prior := c.Limit(LimitVariableNumber, 50)
	assert.Greater(t, prior, 0)
	assert.Equal(t, 50, c.Limit(LimitVariableNumber, 50))
}

func TestConn_BusyTimeout(t *testing.T) {
	c := openTemp(t)
	require.NoError(t, c.BusyTimeout(250*time.Millisecond))

	rows, err := c.Query("PRAGMA busy_timeout")
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, int64(250), rows.Rows[0][0])
}

func TestConn_InterruptIdleIsNoOp(t *testing.T) {
	c := openTemp(t)
	c.Interrupt()
	require.NoError(t, c.ExecBatch("CREATE TABLE t (v INTEGER)"))
}

func TestConn_InterruptCoversOverlappingCalls(t *testing.T) {
	c := openTemp(t)

	// Two calls in flight at once; the first finishing must not disarm the
	// interrupt window of the second.
	ctxA, doneA := c.beginCall()
	ctxB, doneB := c.beginCall()
	doneA()
	require.Error(t, ctxA.Err())
	require.NoError(t, ctxB.Err())

	c.Interrupt()
	select {
	case <-ctxB.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt did not reach the remaining in-flight call")
	}
	doneB()
}

func TestConn_InterruptAbortsRunningStatement(t *testing.T) {
	c := openTemp(t)

	// An unbounded generator: only an interrupt ends it.
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Query(
			"WITH RECURSIVE gen(i) AS (SELECT 1 UNION ALL SELECT i+1 FROM gen) " +
				"SELECT count(*) FROM gen")
		errCh <- err
	}()

	deadline := time.After(10 * time.Second)
	for {
		c.Interrupt()
		select {
		case err := <-errCh:
			require.Error(t, err)
			return
		case <-deadline:
			t.Fatal("statement survived the interrupt")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
