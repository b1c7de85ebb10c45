package db

import "sync"

// opQueue is the FIFO sequence of operations awaiting admission.
//
// It is loop-only state: every push, peek and pop happens on the Database's
// loop goroutine, so no locking is needed. Admission only ever removes from
// the front; order is never rearranged.
type opQueue struct {
	ops []*operation
}

func (q *opQueue) push(op *operation) {
	q.ops = append(q.ops, op)
}

func (q *opQueue) peek() *operation {
	if len(q.ops) == 0 {
		return nil
	}
	return q.ops[0]
}

func (q *opQueue) pop() *operation {
	if len(q.ops) == 0 {
		return nil
	}
	op := q.ops[0]
	// Nil out the slot so the backing array doesn't retain the operation
	// (and its payload) until reallocation.
	q.ops[0] = nil
	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}
	return op
}

func (q *opQueue) len() int { return len(q.ops) }

// intakeQueue feeds the single-writer loop. Public methods, pool goroutines
// and hook forwarders enqueue closures from any goroutine; only the loop
// dequeues. Enqueue never blocks.
//
// The signal channel is buffered with size one so multiple enqueues coalesce
// into a single wakeup. Close wakes the loop permanently; enqueues after
// Close are refused, which is how callers learn the loop is gone.
type intakeQueue struct {
	mu     sync.Mutex
	cmds   []func()
	closed bool
	signal chan struct{}
}

func newIntakeQueue() *intakeQueue {
	return &intakeQueue{
		cmds:   make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue appends a command. Returns false if the queue has been closed.
func (q *intakeQueue) enqueue(cmd func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.cmds = append(q.cmds, cmd)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue removes the front command without blocking.
func (q *intakeQueue) tryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.cmds) == 0 {
		return nil, false
	}
	cmd := q.cmds[0]
	q.cmds[0] = nil
	if len(q.cmds) == 1 {
		q.cmds = q.cmds[:0]
	} else {
		q.cmds = q.cmds[1:]
	}
	return cmd, true
}

// wait returns the wakeup channel. After close, the channel is closed and
// always ready.
func (q *intakeQueue) wait() <-chan struct{} {
	return q.signal
}

func (q *intakeQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// close refuses further enqueues and wakes the loop so it can drain what is
// left and exit. Idempotent.
func (q *intakeQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
