package sched

import (
	"context"
	"time"

	"github.com/minisource/schedulerd/internal/sched/handoff"
	"github.com/minisource/schedulerd/internal/sched/job"
	"github.com/sirupsen/logrus"
)

// managerLoop is the manager task body, per spec.md §4.6. Preconditions
// on each iteration: the scheduler lock is held and state is Running or
// Suspended. It returns once state becomes InShutdown.
func (s *Scheduler) managerLoop(ctx context.Context, gen int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.managerGen != gen {
			return
		}

		if s.killRequested && s.state == Running {
			s.killRequested = false
			s.state = Suspended
			s.log.Warn("scheduler: manager cancelled, treating as suspend")
		}

		if s.state == Suspended {
			s.managerObservedSuspended = true
			s.suspendOrResume.Broadcast() // ack Suspend()'s caller

			s.diag.setWaiting("suspend_or_resume")
			for s.state == Suspended {
				s.suspendOrResume.Wait(ctx)
			}
			s.diag.setWaiting("")

			s.managerObservedSuspended = false
			s.suspendOrResume.Broadcast() // ack Resume()'s (or Stop()'s) caller

			if s.state == Running {
				s.q.RecalculateAll(s.clk.NowUTCSeconds())
			}
		}

		if s.state == InShutdown {
			return
		}

		if s.q.Empty() {
			s.diag.setWaiting("new_work")
			for s.q.Empty() && s.state == Running {
				s.newWork.Wait(ctx)
			}
			s.diag.setWaiting("")
			continue
		}

		top := s.q.Top()
		if top.Status == job.Disabled {
			s.q.RemoveTop()
			if top.Dropped {
				s.deleteJobLocked(top)
			}
			continue
		}

		now := s.clk.NowUTCSeconds()
		delay := top.NextFireAt - now
		if delay > 0 {
			s.diag.setWaiting("new_work")
			s.newWork.WaitDeadline(ctx, top.NextFireAt, s.clk)
			s.diag.setWaiting("")
			continue
		}

		if err := s.executeTop(ctx, top); err != nil {
			s.log.WithError(err).Error("scheduler: cannot fork worker, shutting down manager")
			s.state = InShutdown
			s.startedOrStopped.Broadcast()
			return
		}
	}
}

// executeTop dispatches the queue's top job. It runs with the scheduler
// lock held on entry and returns with it held, per spec.md §4.6.
func (s *Scheduler) executeTop(ctx context.Context, top *job.Record) error {
	h := handoff.New()

	workerCtx, cancel := context.WithCancel(context.Background())
	id := top.ID()

	outcome := top.SpawnWorker(func(rec *job.Record, ack func()) {
		s.runWorker(workerCtx, rec, ack)
	}, h.Ack)

	switch outcome {
	case job.SpawnCannotFork:
		cancel()
		return errCannotFork

	case job.SpawnAlreadyRunning:
		cancel()
		s.log.WithField("job", id).Warn("scheduler: skip fire, worker already running")
		if top.Exhausted() || top.Status == job.Disabled {
			s.q.RemoveTop()
		} else {
			s.q.TopChanged()
		}
		return nil

	default: // job.SpawnOK
		s.workers[id] = cancel
		s.diag.setWaiting("handoff")
		s.mu.Unlock()
		h.WaitStarted()
		s.mu.Lock()
		s.diag.setWaiting("")

		if top.Exhausted() || top.Status == job.Disabled {
			s.q.RemoveTop()
		} else {
			top.AdvanceSchedule(s.clk.NowUTCSeconds())
			if top.Exhausted() {
				s.q.RemoveTop()
			} else {
				s.q.TopChanged()
			}
		}
		return nil
	}
}

// runWorker is the worker task body, per spec.md §4.4 step 2 and §4.6's
// epilogue. It runs outside the scheduler lock except for the brief
// critical sections noted inline.
func (s *Scheduler) runWorker(ctx context.Context, rec *job.Record, ack func()) {
	var handle interface{}
	if s.identity != nil && rec.DefinerPrincipal != "" {
		var err error
		handle, err = s.identity.Assume(ctx, rec.DefinerPrincipal, rec.DefinerSchema)
		if err != nil {
			s.log.WithError(err).WithField("job", rec.ID()).Error("scheduler: cannot assume definer identity")
		}
	}
	ack()

	if s.identity != nil && handle != nil {
		defer s.identity.Release(handle)
	}

	result, detail, err := s.payload.Execute(ctx, rec)
	switch {
	case err == nil && result == ExecOk:
	case result == ExecCompileError:
		s.log.WithFields(logrus.Fields{"job": rec.ID(), "detail": detail}).Warn("scheduler: job payload failed to compile")
	case result == ExecUnsupportedPrecision:
		s.log.WithField("job", rec.ID()).Warn("scheduler: job requests unsupported sub-second precision, skipped")
	case err != nil:
		s.log.WithError(err).WithField("job", rec.ID()).Warn("scheduler: job execution failed")
	}

	s.mu.Lock()
	delete(s.workers, rec.ID())
	shouldDelete := rec.OnWorkerFinish()
	if shouldDelete {
		s.deleteJobLocked(rec)
	}
	s.mu.Unlock()

	if shouldDelete {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.repo.DropPersisted(dctx, rec.Identity); err != nil {
			s.log.WithError(err).WithField("job", rec.ID()).Warn("scheduler: failed to drop persisted job record")
		}
	}
}

// deleteJobLocked performs the in-memory deletion of a job record that
// has already been removed from the queue. It exists as a single
// unification point per spec.md §9's note that Job Record/worker cyclic
// ownership is broken in on_worker_finish.
func (s *Scheduler) deleteJobLocked(rec *job.Record) {
	// The queue no longer references rec; nothing further to release in
	// this in-memory model beyond letting the garbage collector reclaim
	// it once the worker's goroutine stack unwinds.
	_ = rec
}

// stopAllRunningWorkersLocked cancels every live worker and polls until
// the census is empty, per spec.md §4.6. Called with the scheduler lock
// held; it drops the lock while polling so workers can take it to report
// their own completion.
func (s *Scheduler) stopAllRunningWorkersLocked() {
	cancels := make([]context.CancelFunc, 0, len(s.workers))
	for _, cancel := range s.workers {
		cancels = append(cancels, cancel)
	}
	for _, cancel := range cancels {
		cancel()
	}

	for len(s.workers) > 0 {
		s.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		s.mu.Lock()
	}
}
