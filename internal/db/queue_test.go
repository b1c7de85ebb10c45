package db

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpQueue_FIFO(t *testing.T) {
	var q opQueue
	assert.Nil(t, q.peek())
	assert.Nil(t, q.pop())
	assert.Equal(t, 0, q.len())

	a := newOperation(opExec, true)
	b := newOperation(opQuery, false)
	c := newOperation(opWait, true)
	q.push(a)
	q.push(b)
	q.push(c)
	assert.Equal(t, 3, q.len())

	assert.Same(t, a, q.peek())
	assert.Same(t, a, q.pop())
	assert.Same(t, b, q.pop())
	assert.Same(t, c, q.pop())
	assert.Nil(t, q.pop())
	assert.Equal(t, 0, q.len())
}

func TestIntakeQueue_EnqueueDequeueOrder(t *testing.T) {
	q := newIntakeQueue()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, q.enqueue(func() { got = append(got, i) }))
	}

	for {
		cmd, ok := q.tryDequeue()
		if !ok {
			break
		}
		cmd()
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestIntakeQueue_CloseRefusesEnqueues(t *testing.T) {
	q := newIntakeQueue()
	require.True(t, q.enqueue(func() {}))

	q.close()
	assert.True(t, q.isClosed())
	assert.False(t, q.enqueue(func() {}))

	// What was queued before close is still drainable.
	_, ok := q.tryDequeue()
	assert.True(t, ok)
	_, ok = q.tryDequeue()
	assert.False(t, ok)

	// The wakeup channel is closed, so waits never block again.
	select {
	case <-q.wait():
	default:
		t.Fatal("wait channel should be ready after close")
	}

	q.close() // idempotent
}

func TestIntakeQueue_ConcurrentProducers(t *testing.T) {
	q := newIntakeQueue()

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.enqueue(func() {})
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := q.tryDequeue(); !ok {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}
