// Package postgres adapts the repository package's gorm-backed stores
// onto the scheduler core's sched.Repository contract.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/minisource/schedulerd/internal/models"
	"github.com/minisource/schedulerd/internal/payload"
	"github.com/minisource/schedulerd/internal/repository"
	"github.com/minisource/schedulerd/internal/sched/job"
	"gorm.io/gorm"
)

// Store implements sched.Repository over the job repository.
type Store struct {
	jobs *repository.JobRepository
}

// NewStore creates a new Store.
func NewStore(jobs *repository.JobRepository) *Store {
	return &Store{jobs: jobs}
}

// LoadAll loads every non-deleted job definition into in-memory job
// Records, per spec.md §6. Enabled/Paused/Disabled rows are all loaded;
// only Paused and Disabled map to job.Disabled so the manager never
// fires them, while Query/GetStats in the HTTP layer still distinguish
// the two for display.
func (s *Store) LoadAll(ctx context.Context) ([]*job.Record, error) {
	rows, err := s.jobs.FindLoadable(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: load jobs: %w", err)
	}

	now := time.Now().UTC()
	records := make([]*job.Record, 0, len(rows))
	for i := range rows {
		rec, err := recordFromRow(&rows[i], now)
		if err != nil {
			// A single malformed schedule must not abort scheduler boot
			// for every other job; skip it. The row stays in the database
			// but is not queued.
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// DropPersisted removes a job's persisted row once its recurrence is
// exhausted or it was dropped while running, per spec.md §6. A
// Preserve=true definition is disabled in place instead of deleted, so
// its fire history remains queryable.
func (s *Store) DropPersisted(ctx context.Context, id job.Identity) error {
	def, err := s.jobs.FindByIdentity(ctx, id.DatabaseName, id.JobName)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return fmt.Errorf("postgres: find job %s: %w", id.ID(), err)
	}

	if def.Preserve {
		return s.jobs.UpdateStatus(ctx, def.ID, models.JobStatusDisabled)
	}
	return s.jobs.DeleteByIdentity(ctx, id.DatabaseName, id.JobName)
}

func recordFromRow(row *models.JobDefinition, now time.Time) (*job.Record, error) {
	sched, firstFireAt, subSecond, err := payload.NewSchedule(row.Type, row.Schedule, now)
	if err != nil {
		return nil, err
	}

	if row.NextFireAt != nil {
		firstFireAt = row.NextFireAt.UTC().Unix()
	}

	id := job.Identity{DatabaseName: row.DatabaseName, JobName: row.JobName}
	rec := job.New(id, row.DefinerPrincipal, row.DefinerSchema, sched, firstFireAt)

	if row.Status != models.JobStatusEnabled {
		rec.Status = job.Disabled
	}

	rec.Opaque = payload.EndpointSpec{
		TenantID:           row.TenantID.String(),
		Endpoint:           row.Endpoint,
		Method:             row.Method,
		Headers:            row.Headers,
		Payload:            row.Payload,
		Timeout:            time.Duration(row.Timeout) * time.Second,
		MaxRetries:         row.MaxRetries,
		RetryDelay:         time.Duration(row.RetryDelay) * time.Second,
		SubSecondPrecision: subSecond,
	}

	return rec, nil
}
