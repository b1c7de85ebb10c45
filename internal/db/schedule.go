package db

// schedule admits an operation immediately, queues it, or fails it against a
// closed handle. Never drops an operation silently. Loop only.
func (d *Database) schedule(op *operation) {
	if d.state.sealed() {
		d.failClosed(op, "Database is closed")
		return
	}

	if !d.state.open || ((d.state.locked || op.exclusive || d.state.serialize) && d.state.pending > 0) {
		// Under serialize mode a queued operation is held to exclusive
		// ordering even if it wasn't marked exclusive by its caller.
		op.exclusive = op.exclusive || d.state.serialize
		d.queue.push(op)
		d.logger.Debug("operation queued",
			"op", op.kind.String(), "id", op.id, "depth", d.queue.len())
		return
	}

	d.state.locked = op.exclusive
	d.startOp(op)
}

// process advances the queue as far as the current state permits. Idempotent;
// calling it when nothing is eligible is a no-op. Loop only.
func (d *Database) process() {
	if d.state.sealed() && d.queue.len() > 0 {
		// The handle is permanently gone: fail everything left, in order.
		err := &MisuseError{Message: "Database handle is closed"}
		called := false
		for d.queue.len() > 0 {
			op := d.queue.pop()
			if op.complete != nil {
				d.runCompletion(op, err)
				called = true
			}
		}
		if !called {
			d.events.emitError(err)
		}
		return
	}

	for d.state.open && (!d.state.locked || d.state.pending == 0) && d.queue.len() > 0 {
		op := d.queue.peek()
		if op.exclusive && d.state.pending > 0 {
			// Cannot start yet; it keeps its place at the front.
			break
		}
		d.queue.pop()
		d.state.locked = op.exclusive
		d.startOp(op)
		if d.state.locked {
			// One exclusive admission per pass.
			break
		}
	}
}

// startOp begins an admitted operation: loop-synchronous actions run inline,
// blocking bodies go to the pool with the pending counter raised. Loop only.
func (d *Database) startOp(op *operation) {
	d.logger.Debug("operation started",
		"op", op.kind.String(), "id", op.id, "exclusive", op.exclusive)
	if op.body == nil {
		op.run()
		return
	}
	if op.begin != nil {
		op.begin()
	}
	d.state.pending++
	d.dispatch(op)
}

// finish is the completion side of the dispatch contract: bookkeeping is
// adjusted before the result is reported, and the queue is drained after.
// Runs on the loop, exactly once per dispatched operation.
func (d *Database) finish(op *operation, err error) {
	switch op.kind {
	case opOpen:
		d.finishOpen(op, err)
		return
	case opClose:
		d.finishClose(op, err)
		return
	}

	d.state.pending--
	if op.exclusive {
		d.state.locked = false
	}
	d.logger.Debug("operation finished",
		"op", op.kind.String(), "id", op.id, "error", err)
	d.report(op, err)
	d.process()
}

// report resolves an operation at its boundary: the completion if one was
// supplied, otherwise the fallback error event for failures.
func (d *Database) report(op *operation, err error) {
	if err != nil {
		if op.complete != nil {
			d.runCompletion(op, err)
		} else {
			d.events.emitError(err)
		}
		return
	}
	if op.complete != nil {
		d.runCompletion(op, nil)
	}
}

// failClosed resolves an operation against a permanently closed handle.
// The completion (or the fallback error event) fires synchronously on the
// calling goroutine.
func (d *Database) failClosed(op *operation, message string) {
	err := &MisuseError{Message: message}
	if op.complete != nil {
		d.runCompletion(op, err)
		return
	}
	d.events.emitError(err)
}

// runCompletion invokes a caller-supplied completion with fault containment:
// the scheduler's bookkeeping is already consistent, so a panicking handler
// is wrapped as a CallbackFault and handed to the fault handler instead of
// corrupting the loop.
func (d *Database) runCompletion(op *operation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			fault := &CallbackFault{Op: op.kind.String(), Value: rec}
			if d.opts.fault != nil {
				d.opts.fault(fault)
				return
			}
			panic(fault)
		}
	}()
	op.complete(err)
}
