package db

import (
	"context"
	"fmt"
)

// dispatch hands a blocking body to the pool. The semaphore bounds how many
// bodies run at once; acquisition happens on the pool goroutine so the loop
// never waits for a slot. The body's result is posted back to the intake
// queue and finish runs on the loop exactly once.
func (d *Database) dispatch(op *operation) {
	conn := d.conn()
	go func() {
		// Background context: an admitted operation cannot be cancelled,
		// only interrupted through the native handle.
		if err := d.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		err := runBody(op, conn)
		d.sem.Release(1)
		d.post(func() { d.finish(op, err) })
	}()
}

// runBody executes the blocking action with panic containment. A panicking
// body is reported to the operation's completion as an ordinary failure; it
// must not take the loop down.
func runBody(op *operation, conn Conn) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("seqlite: %s operation body panicked: %v", op.kind, rec)
		}
	}()
	return op.body(conn)
}
