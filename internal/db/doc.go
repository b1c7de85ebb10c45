// Package db implements the asynchronous, ordered scheduler in front of a
// single SQLite connection handle.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Each Database owns one loop goroutine. All scheduler state (the lifecycle
// flags, the pending counter, the serialize bias, and the operation queue)
// is read and written only on that goroutine. Public methods and worker
// completions communicate with it through a thread-safe intake queue of
// closures; enqueuing never blocks.
//
// Operation Flow:
//  1. A public method builds an operation and posts it to the intake queue.
//  2. The loop runs schedule(): the operation either starts immediately or
//     is appended to the FIFO operation queue.
//  3. A started operation's blocking body runs on a pool goroutine, bounded
//     by a weighted semaphore. Loop-synchronous operations (wait, the
//     configure family) run inline on the loop instead.
//  4. The body's result is posted back to the intake queue; the loop runs
//     finish(): bookkeeping first, then the completion callback or the
//     fallback event, then process() to drain the queue further.
//
// Locking Protocol:
// An exclusive operation starts only when nothing else is in flight
// (pending == 0) and blocks all admissions while it runs. Non-exclusive
// operations may overlap each other. Queue order is FIFO and admission only
// ever removes from the front, so a queued exclusive operation cannot be
// overtaken.
//
// End of Life:
// Close is an ordinary exclusive operation. Once it succeeds, open is false
// and locked stays true forever (the closed sentinel). Anything still queued
// is failed in FIFO order, the intake queue is closed, and the loop exits.
// Later submissions are failed synchronously on the caller's goroutine.
package db
