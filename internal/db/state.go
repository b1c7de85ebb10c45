package db

import "sync/atomic"

// state holds the connection lifecycle flags and the in-flight counter.
//
// The plain fields are loop-only: they are read and written exclusively on
// the Database's loop goroutine, which is what makes them safe without a
// lock. The atomic mirrors exist for the two readers that are allowed off
// the loop, Interrupt and IsOpen, and are written only by the loop.
//
// INVARIANTS:
//   - locked implies exactly one exclusive operation is in flight, or the
//     handle has reached its permanent closed sentinel.
//   - an exclusive operation only starts when pending == 0.
//   - pending increases only when a blocking body is handed to the pool and
//     decreases exactly once, in that operation's finish.
type state struct {
	open      bool
	locked    bool
	closing   bool
	pending   int
	serialize bool

	openMirror    atomic.Bool
	closingMirror atomic.Bool
	closedMirror  atomic.Bool // permanent: !open && locked
}

// setOpen flips the open flag and its mirror. Loop only.
func (s *state) setOpen(v bool) {
	s.open = v
	s.openMirror.Store(v)
}

// setClosing flips the closing flag and its mirror. Loop only.
func (s *state) setClosing(v bool) {
	s.closing = v
	s.closingMirror.Store(v)
}

// seal marks the permanent end-of-life sentinel: the handle is gone and no
// further work will ever run. Loop only.
func (s *state) seal() {
	s.setOpen(false)
	s.setClosing(false)
	s.locked = true
	s.closedMirror.Store(true)
}

// sealed reports the end-of-life sentinel as seen from the loop.
func (s *state) sealed() bool {
	return !s.open && s.locked
}
