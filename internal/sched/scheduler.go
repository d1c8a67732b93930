// Package sched implements the scheduler core: the manager loop, the
// worker handoff, and the lifecycle state machine described in spec.md
// §4.5–§4.7. It is the component that dominates the budget of this
// repository; everything else in the module is an adapter feeding it or
// a surface exposing it.
package sched

import (
	"context"
	"fmt"
	"sync"

	"github.com/minisource/schedulerd/internal/sched/clock"
	"github.com/minisource/schedulerd/internal/sched/queue"
	"github.com/sirupsen/logrus"
)

// Scheduler is a handle to one scheduler instance. Callers construct one
// via New and pass it explicitly through their own wiring (spec.md §9);
// the package keeps no process-wide default instance.
type Scheduler struct {
	mu sync.Mutex

	newWork          *broadcastCond
	startedOrStopped *broadcastCond
	suspendOrResume  *broadcastCond

	state      State
	managerGen int64

	startSuspendedReq bool
	killRequested     bool

	// managerObservedSuspended is true from the moment the manager loop
	// notices state==Suspended until it notices state has left Suspended
	// again. Suspend/Resume wait on this flag (via suspend_or_resume)
	// rather than on state directly, because state is the thing they
	// themselves just changed; the flag is the manager's acknowledgement.
	managerObservedSuspended bool

	q        *queue.Queue
	clk      clock.Clock
	repo     Repository
	payload  PayloadAdapter
	identity IdentityAdapter
	log      *logrus.Entry

	workers map[string]context.CancelFunc

	diag diagnostics
}

// New constructs a Scheduler in the Uninitialized state. Call Init before
// Start.
func New(repo Repository, payload PayloadAdapter, identity IdentityAdapter, clk clock.Clock, log *logrus.Entry) *Scheduler {
	s := &Scheduler{
		state:    Uninitialized,
		q:        queue.New(),
		clk:      clk,
		repo:     repo,
		payload:  payload,
		identity: identity,
		log:      log,
		workers:  make(map[string]context.CancelFunc),
	}
	s.newWork = newBroadcastCond(&s.mu)
	s.startedOrStopped = newBroadcastCond(&s.mu)
	s.suspendOrResume = newBroadcastCond(&s.mu)
	return s
}

// Init transitions Uninitialized -> Initialized. It is idempotent once
// past Uninitialized, so repeated calls (e.g. during server restart
// sequencing) are harmless.
func (s *Scheduler) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Uninitialized {
		s.state = Initialized
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WorkersCount returns the number of workers currently executing.
func (s *Scheduler) WorkersCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// start is the shared implementation of Start and StartSuspended.
func (s *Scheduler) start(ctx context.Context, suspended bool) error {
	s.mu.Lock()
	if s.state == CantStart {
		s.state = Initialized
	}
	if s.state != Initialized {
		err := ErrAlreadyRunning
		if s.state == InShutdown {
			err = ErrNotRunning
		}
		s.mu.Unlock()
		return err
	}

	s.managerGen++
	gen := s.managerGen
	s.startSuspendedReq = suspended
	s.state = Commencing
	s.mu.Unlock()

	go s.runManager(gen)

	s.mu.Lock()
	for s.state == Commencing {
		s.startedOrStopped.Wait(ctx)
	}
	finalState := s.state
	s.mu.Unlock()

	if finalState == CantStart {
		return ErrCantStart
	}
	return nil
}

// Start boots the manager non-suspended, per spec.md §4.5.
func (s *Scheduler) Start(ctx context.Context) error {
	return s.start(ctx, false)
}

// StartSuspended boots the manager directly into Suspended. Per spec.md
// §8's round-trip property, StartSuspended followed by Resume is
// equivalent to Start.
func (s *Scheduler) StartSuspended(ctx context.Context) error {
	return s.start(ctx, true)
}

// runManager boots the manager task: loads jobs from the repository,
// transitions to Running/Suspended/CantStart, then runs the loop until
// shutdown, then transitions back to Initialized. gen pins this
// invocation to the Start call that spawned it so a stale manager from a
// superseded generation never mutates state another generation owns.
func (s *Scheduler) runManager(gen int64) {
	ctx := context.Background()

	jobs, err := s.repo.LoadAll(ctx)

	s.mu.Lock()
	if s.managerGen != gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.log.WithError(err).Error("scheduler: repository load failed at boot")
		s.state = CantStart
		s.startedOrStopped.Broadcast()
		s.mu.Unlock()
		return
	}
	for _, rec := range jobs {
		s.q.Insert(rec)
	}
	if s.startSuspendedReq {
		s.state = Suspended
	} else {
		s.state = Running
	}
	s.log.WithFields(logrus.Fields{"state": s.state.String(), "jobs": len(jobs)}).Info("scheduler: manager started")
	s.startedOrStopped.Broadcast()
	s.mu.Unlock()

	s.managerLoop(ctx, gen)

	s.mu.Lock()
	if s.managerGen == gen {
		s.stopAllRunningWorkersLocked()
		s.state = Initialized
		s.log.Info("scheduler: manager stopped")
		s.startedOrStopped.Broadcast()
	}
	s.mu.Unlock()
}

// DumpStatus implements the diagnostic surface of spec.md §6: a
// two-column (Name, Value) stream. Row set and names are part of the
// external contract and must not change independently of spec.md.
func (s *Scheduler) DumpStatus() [][2]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := [][2]string{
		{"state", s.state.String()},
		{"last locked at", s.diag.lastLockedAt()},
		{"last unlocked at", s.diag.lastUnlockedAt()},
		{"waiting on condition", s.diag.waitingOn()},
		{"workers_count", fmt.Sprintf("%d", len(s.workers))},
		{"queue.elements", fmt.Sprintf("%d", s.q.EventsCountUnlocked())},
		{"scheduler data locked", fmt.Sprintf("%t", s.diag.isLocked())},
	}
	return rows
}
