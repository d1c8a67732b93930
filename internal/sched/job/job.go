// Package job defines the scheduler's in-memory job record: the mutable
// unit the queue orders and the manager fires.
package job

// ExecFlags is a bitset of job execution flags.
type ExecFlags uint32

const (
	// NoMoreExecutions is set once a job's recurrence is exhausted.
	NoMoreExecutions ExecFlags = 1 << iota
)

// Status is the enabled/disabled state a job definition carries.
type Status int

const (
	// Enabled jobs are eligible to fire.
	Enabled Status = iota
	// Disabled jobs stay in the repository but never fire.
	Disabled
)

func (s Status) String() string {
	if s == Disabled {
		return "disabled"
	}
	return "enabled"
}

// Schedule computes the next fire instant for a job. One-shot schedules
// return ok=false after their single instant has been consumed.
type Schedule interface {
	// Next returns the next fire instant at or after from, in UTC
	// seconds. ok is false when the schedule is exhausted.
	Next(from int64) (next int64, ok bool)
}

// Identity is the immutable (database_name, job_name) key of a job.
type Identity struct {
	DatabaseName string
	JobName      string
}

// ID packs Identity into a single map key.
func (id Identity) ID() string {
	return id.DatabaseName + "." + id.JobName
}

// Record is the scheduler's in-memory, mutable job state. All fields
// below the Identity are protected by the owning scheduler's lock; Record
// itself holds no lock of its own, per the single-scheduler-lock
// discipline.
type Record struct {
	Identity

	DefinerPrincipal string
	DefinerSchema    string
	Schedule         Schedule

	NextFireAt int64
	Status     Status
	Flags      ExecFlags

	Running  bool
	Dropped  bool
	RunnerID string

	// Opaque is adapter-private data attached at construction time by
	// whoever builds the Record (typically the repository adapter). The
	// scheduler core never reads or writes it; the PayloadAdapter type-
	// asserts it back to whatever concrete type it stashed there (e.g. the
	// job's HTTP endpoint/method/headers/body).
	Opaque interface{}

	// seq is assigned by the queue on insert and used only as the FIFO
	// tiebreak for equal NextFireAt; it is not part of job identity.
	seq int64
	// heapIndex is maintained by container/heap for O(log n)
	// top_changed() re-heapification; callers never touch it directly.
	heapIndex int
}

// Seq and HeapIndex/SetHeapIndex/SetSeq exist only for package queue's
// container/heap bookkeeping; no other caller should use them.

// Seq returns the FIFO insertion tiebreak.
func (r *Record) Seq() int64 { return r.seq }

// SetSeq sets the FIFO insertion tiebreak; called once by the queue on insert.
func (r *Record) SetSeq(seq int64) { r.seq = seq }

// HeapIndex returns the container/heap slice index.
func (r *Record) HeapIndex() int { return r.heapIndex }

// SetHeapIndex sets the container/heap slice index.
func (r *Record) SetHeapIndex(i int) { r.heapIndex = i }

// New constructs a Record in the Enabled state.
func New(id Identity, definerPrincipal, definerSchema string, schedule Schedule, firstFireAt int64) *Record {
	return &Record{
		Identity:         id,
		DefinerPrincipal: definerPrincipal,
		DefinerSchema:    definerSchema,
		Schedule:         schedule,
		NextFireAt:       firstFireAt,
		Status:           Enabled,
	}
}

// Exhausted reports whether the job's recurrence is used up.
func (r *Record) Exhausted() bool {
	return r.Flags&NoMoreExecutions != 0
}

// AdvanceSchedule mutates NextFireAt to the schedule's next instant after
// the current NextFireAt, asking from max(now, NextFireAt) so an interval
// keeps its cadence from the instant that was due; sets NoMoreExecutions
// if the schedule yields no further instant. Callers must hold the
// scheduler lock.
func (r *Record) AdvanceSchedule(now int64) {
	from := r.NextFireAt
	if now > from {
		from = now
	}
	next, ok := r.Schedule.Next(from)
	if ok && next <= r.NextFireAt {
		// The schedule handed back the instant just fired (a one-shot
		// does): ask for the one after it.
		next, ok = r.Schedule.Next(r.NextFireAt + 1)
	}
	if !ok {
		r.Flags |= NoMoreExecutions
		return
	}
	r.NextFireAt = next
}

// SpawnOutcome is the result of attempting to start a worker for a job.
type SpawnOutcome int

const (
	// SpawnOK means the worker was started and Running is now true.
	SpawnOK SpawnOutcome = iota
	// SpawnCannotFork means the runtime could not start a new goroutine's
	// worker context (practically: a resource exhaustion the caller
	// treats as scheduler-fatal).
	SpawnCannotFork
	// SpawnAlreadyRunning means a worker for this job is already live.
	SpawnAlreadyRunning
)

// WorkerEntry is the function executed by a spawned worker. It must call
// ack() once it has finished initializing its execution context and
// before doing any blocking work.
type WorkerEntry func(rec *Record, ack func())

// SpawnWorker launches a worker for rec via entry. Setting Running=true is
// atomic with the decision to spawn, so a caller that observes SpawnOK can
// safely drop the scheduler lock knowing at most one worker is live for
// this job. Callers must hold the scheduler lock.
func (r *Record) SpawnWorker(entry WorkerEntry, ack func()) SpawnOutcome {
	if r.Running {
		return SpawnAlreadyRunning
	}
	r.Running = true
	go entry(r, ack)
	return SpawnOK
}

// OnWorkerFinish is called from the worker epilogue, outside the
// scheduler lock held by the manager but the caller (the worker) must
// take the scheduler lock before calling this. It returns true if the
// caller should delete the Record: either the drop was observed while
// running, or the recurrence is exhausted and the job was already
// disabled/removed from the queue by the manager.
func (r *Record) OnWorkerFinish() bool {
	r.Running = false
	r.RunnerID = ""
	return r.Dropped || r.Exhausted()
}
