package sched

import (
	"context"

	"github.com/minisource/schedulerd/internal/sched/job"
)

// ExecResult is the outcome of a single payload execution, per spec.md §6.
type ExecResult int

const (
	// ExecOk means the payload ran and completed without error.
	ExecOk ExecResult = iota
	// ExecCompileError means the payload failed to compile/validate.
	ExecCompileError
	// ExecUnsupportedPrecision means the job requested sub-second
	// precision, which this scheduler does not offer.
	ExecUnsupportedPrecision
	// ExecOther is any other per-job execution failure; the detail string
	// Execute returns alongside it carries adapter-specific detail.
	ExecOther
)

// PayloadAdapter executes a job's payload. It is consumed by the worker,
// outside any scheduler lock.
type PayloadAdapter interface {
	Execute(ctx context.Context, rec *job.Record) (ExecResult, string, error)
}

// IdentityHandle is an opaque impersonation handle returned by Assume.
type IdentityHandle interface{}

// IdentityAdapter lets a worker run as a job's definer principal.
type IdentityAdapter interface {
	Assume(ctx context.Context, principal, schema string) (IdentityHandle, error)
	Release(handle IdentityHandle)
}

// Repository is the external persistence contract the scheduler core
// consumes, per spec.md §6. Persisting job definitions, recurrence
// syntax, and everything else about durable storage is the repository's
// concern, not the core's.
type Repository interface {
	// LoadAll is invoked once at manager boot, before the scheduler
	// transitions to Running or Suspended.
	LoadAll(ctx context.Context) ([]*job.Record, error)
	// DropPersisted is invoked by a worker when a one-shot job has
	// finished and should be removed from durable storage.
	DropPersisted(ctx context.Context, id job.Identity) error
}
