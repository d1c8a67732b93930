package sched

import "errors"

// Control-surface return codes, per spec.md §6/§7. Ok is the absence of
// an error (nil).
var (
	// ErrNotRunning is returned by stop/suspend/resume when the
	// scheduler is not in a state that admits the requested transition.
	ErrNotRunning = errors.New("sched: not running")
	// ErrCannotKill is the control surface's CannotKill code. No
	// Scheduler method returns it: the shutdown drain cancels every
	// worker and waits until all of them have exited.
	ErrCannotKill = errors.New("sched: cannot kill")
	// ErrAlreadyRunning is returned by start when the scheduler is
	// already Running, Suspended, or mid-Commencing.
	ErrAlreadyRunning = errors.New("sched: already running")
	// ErrCantStart is returned by start when the manager failed to boot
	// (repository load failed) and the scheduler landed in CantStart.
	ErrCantStart = errors.New("sched: manager failed to start")
	// ErrUnsupportedPrecision describes a job whose schedule requests
	// sub-second precision. The manager does not return it: such a fire
	// comes back from the payload adapter as ExecUnsupportedPrecision and
	// is logged and skipped.
	ErrUnsupportedPrecision = errors.New("sched: sub-second precision is not supported")

	// errCannotFork is the manager loop's internal signal that
	// spawn_worker could not start a goroutine for the top job. It never
	// crosses the package boundary; managerLoop maps it to InShutdown and
	// exits, after which runManager drains workers and returns the
	// scheduler to Initialized.
	errCannotFork = errors.New("sched: cannot fork worker")
)
