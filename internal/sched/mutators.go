package sched

import (
	"context"

	"github.com/minisource/schedulerd/internal/sched/job"
)

// Add inserts a new job into the queue and signals new_work, per spec.md
// §4.7. It is a no-op with respect to persistence: callers are expected
// to have already durably stored the job definition before calling Add.
func (s *Scheduler) Add(rec *job.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q.Insert(rec)
	s.newWork.Broadcast()
}

// Update applies mutate to the job identified by id while it sits in the
// queue, then re-heapifies and signals new_work, per spec.md §4.7. It
// reports false if no such job is queued.
func (s *Scheduler) Update(id job.Identity, mutate func(rec *job.Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.q.Lookup(id)
	if !ok {
		return false
	}
	s.q.RemoveByIdentity(id)
	mutate(rec)
	s.q.Insert(rec)
	s.newWork.Broadcast()
	return true
}

// QueueChanged re-signals new_work without otherwise touching state. It
// exists for callers (e.g. a repository-driven bulk import) that mutate
// job records directly and only need the manager to re-evaluate the
// queue's top, per spec.md §6's queue_changed control-surface entry.
func (s *Scheduler) QueueChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newWork.Broadcast()
}

// Kill delivers an external cancellation of the manager task. Per
// spec.md §5's concurrency model, this is NOT a stop: the manager clears
// the kill flag and enters Suspended, to be released by an explicit
// Resume or Stop. It is a no-op unless the manager is Running.
func (s *Scheduler) Kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return
	}
	s.killRequested = true
	s.newWork.Broadcast()
}

// Drop removes a job from the queue, per spec.md §4.7. If the job is
// currently running, deletion is deferred: Dropped is set and the worker
// epilogue deletes the record once execution finishes.
func (s *Scheduler) Drop(id job.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.q.Lookup(id)
	if !ok {
		return
	}
	if rec.Running {
		rec.Dropped = true
		s.q.RemoveByIdentity(id)
	} else {
		s.q.RemoveByIdentity(id)
		s.deleteJobLocked(rec)
	}
	s.newWork.Broadcast()
}

// Suspend transitions Running -> Suspended and waits for the manager's
// acknowledgement, per spec.md §4.7. It is a no-op if already Suspended.
func (s *Scheduler) Suspend(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Suspended {
		return nil
	}
	if s.state != Running {
		return ErrNotRunning
	}

	s.state = Suspended
	s.newWork.Broadcast()
	gen := s.managerGen
	for !s.managerObservedSuspended && s.managerGen == gen {
		s.suspendOrResume.Wait(ctx)
	}
	return nil
}

// Resume transitions Suspended -> Running, waits for the manager's
// acknowledgement, and relies on the manager loop to recalculate the
// queue against elapsed wall-clock time, per spec.md §4.5/§4.6. It is a
// no-op if already Running.
func (s *Scheduler) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Running {
		return nil
	}
	if s.state != Suspended {
		return ErrNotRunning
	}

	s.state = Running
	s.suspendOrResume.Broadcast()
	gen := s.managerGen
	for s.managerObservedSuspended && s.managerGen == gen {
		s.suspendOrResume.Wait(ctx)
	}
	return nil
}

// Stop transitions {Running, Suspended} -> InShutdown and waits for the
// manager to finish draining workers and return to Initialized, per
// spec.md §4.7.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running && s.state != Suspended {
		return ErrNotRunning
	}

	s.state = InShutdown
	s.newWork.Broadcast()
	s.suspendOrResume.Broadcast()

	gen := s.managerGen
	for s.managerGen == gen && s.state != Initialized {
		s.startedOrStopped.Wait(ctx)
	}
	return nil
}
