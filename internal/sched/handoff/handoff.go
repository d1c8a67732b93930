// Package handoff implements the manager-to-worker startup rendezvous of
// spec.md §4.4: a per-spawn, single-use signal that the manager waits on
// so it can safely drop its stack-allocated handoff once the worker has
// observed everything it needs, without waiting for the worker's
// execution itself to complete.
package handoff

import "sync"

// Handoff is constructed on the manager's stack for a single spawn and
// discarded immediately after the manager observes Started.
type Handoff struct {
	mu      sync.Mutex
	cond    *sync.Cond
	started bool
}

// New returns a fresh, not-yet-started Handoff.
func New() *Handoff {
	h := &Handoff{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Ack is called by the worker once its execution context is initialized.
// It must be called exactly once per Handoff.
func (h *Handoff) Ack() {
	h.mu.Lock()
	h.started = true
	h.cond.Signal()
	h.mu.Unlock()
}

// WaitStarted blocks until Ack has been called. The manager calls this
// with the scheduler lock released, and before its next queue mutation
// so that the worker's startup happens-before that mutation, and before
// letting the Handoff go out of scope.
func (h *Handoff) WaitStarted() {
	h.mu.Lock()
	for !h.started {
		h.cond.Wait()
	}
	h.mu.Unlock()
}
