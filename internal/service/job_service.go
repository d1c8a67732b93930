package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minisource/schedulerd/internal/models"
	"github.com/minisource/schedulerd/internal/payload"
	"github.com/minisource/schedulerd/internal/repository"
	"github.com/minisource/schedulerd/internal/sched"
	"github.com/minisource/schedulerd/internal/sched/job"
	"github.com/robfig/cron/v3"
)

// JobService bridges the HTTP layer's job CRUD requests to the
// scheduler core's in-memory job.Record queue. Every mutation that
// changes a job's schedule or eligibility is mirrored into the running
// Scheduler so the manager's queue never drifts from the persisted row.
type JobService struct {
	jobRepo         *repository.JobRepository
	executionRepo   *repository.ExecutionRepository
	scheduler       *sched.Scheduler
	retryDispatcher *payload.RetryDispatcher
	cronParser      cron.Parser
}

// NewJobService creates a new job service.
func NewJobService(
	jobRepo *repository.JobRepository,
	executionRepo *repository.ExecutionRepository,
	scheduler *sched.Scheduler,
	retryDispatcher *payload.RetryDispatcher,
) *JobService {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	return &JobService{
		jobRepo:         jobRepo,
		executionRepo:   executionRepo,
		scheduler:       scheduler,
		retryDispatcher: retryDispatcher,
		cronParser:      parser,
	}
}

// Create persists a new job definition and adds it to the running
// scheduler.
func (s *JobService) Create(ctx context.Context, tenantID uuid.UUID, req *models.CreateJobRequest) (*models.JobDefinition, error) {
	if err := s.validateSchedule(req.Type, req.Schedule); err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = 30
	}
	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	priority := req.Priority
	if priority == 0 {
		priority = 5
	}
	method := req.Method
	if method == "" {
		method = "POST"
	}

	def := &models.JobDefinition{
		ID:               uuid.New(),
		TenantID:         tenantID,
		DatabaseName:     req.DatabaseName,
		JobName:          req.JobName,
		DefinerPrincipal: req.DefinerPrincipal,
		DefinerSchema:    req.DefinerSchema,
		Description:      req.Description,
		Type:             req.Type,
		Status:           models.JobStatusEnabled,
		Schedule:         req.Schedule,
		Timezone:         req.Timezone,
		Preserve:         req.Preserve,
		Endpoint:         req.Endpoint,
		Method:           method,
		Headers:          req.Headers,
		Payload:          req.Payload,
		Timeout:          timeout,
		MaxRetries:       maxRetries,
		RetryDelay:       req.RetryDelay,
		Priority:         priority,
		Tags:             req.Tags,
		Metadata:         req.Metadata,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := s.jobRepo.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if rec, err := s.buildRecord(def, time.Now()); err == nil {
		s.scheduler.Add(rec)
	}
	// A malformed schedule does not abort creation: the row is already
	// durable, and a corrective Update will add it to the queue.

	return def, nil
}

// GetByID retrieves a job by tenant and ID.
func (s *JobService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.JobDefinition, error) {
	return s.jobRepo.FindByTenantAndID(ctx, tenantID, id)
}

// List lists jobs with filtering.
func (s *JobService) List(ctx context.Context, filter models.JobFilter) (*models.JobListResult, error) {
	return s.jobRepo.Query(ctx, filter)
}

// Update updates a job definition and mirrors the change into the
// scheduler's queued record, if one is queued.
func (s *JobService) Update(ctx context.Context, tenantID, id uuid.UUID, req *models.UpdateJobRequest) (*models.JobDefinition, error) {
	def, err := s.jobRepo.FindByTenantAndID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	scheduleChanged := false

	if req.Description != nil {
		def.Description = *req.Description
	}
	if req.Schedule != nil && *req.Schedule != "" {
		if err := s.validateSchedule(def.Type, *req.Schedule); err != nil {
			return nil, err
		}
		def.Schedule = *req.Schedule
		scheduleChanged = true
	}
	if req.Timezone != nil {
		def.Timezone = *req.Timezone
	}
	if req.Preserve != nil {
		def.Preserve = *req.Preserve
	}
	if req.Endpoint != nil && *req.Endpoint != "" {
		def.Endpoint = *req.Endpoint
	}
	if req.Method != nil && *req.Method != "" {
		def.Method = *req.Method
	}
	if req.Headers != nil {
		def.Headers = *req.Headers
	}
	if req.Payload != nil {
		def.Payload = *req.Payload
	}
	if req.Timeout != nil && *req.Timeout > 0 {
		def.Timeout = *req.Timeout
	}
	if req.MaxRetries != nil && *req.MaxRetries > 0 {
		def.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelay != nil && *req.RetryDelay > 0 {
		def.RetryDelay = *req.RetryDelay
	}
	if req.Priority != nil && *req.Priority > 0 {
		def.Priority = *req.Priority
	}
	if req.Tags != nil {
		def.Tags = *req.Tags
	}
	if req.Metadata != nil {
		def.Metadata = *req.Metadata
	}

	def.UpdatedAt = time.Now()

	if err := s.jobRepo.Update(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	identity := job.Identity{DatabaseName: def.DatabaseName, JobName: def.JobName}
	applied := s.scheduler.Update(identity, func(rec *job.Record) {
		rec.DefinerPrincipal = def.DefinerPrincipal
		rec.DefinerSchema = def.DefinerSchema

		subSecond := false
		if existing, ok := rec.Opaque.(payload.EndpointSpec); ok {
			subSecond = existing.SubSecondPrecision
		}
		if scheduleChanged {
			if sc, firstFireAt, sub, err := payload.NewSchedule(def.Type, def.Schedule, time.Now()); err == nil {
				rec.Schedule = sc
				rec.NextFireAt = firstFireAt
				rec.Flags = 0
				subSecond = sub
			}
		}
		rec.Opaque = endpointSpec(def, subSecond)
	})
	if !applied && def.Status == models.JobStatusEnabled {
		// Not currently queued (e.g. dropped after recurrence exhaustion);
		// re-add it so the edit takes effect.
		if rec, err := s.buildRecord(def, time.Now()); err == nil {
			s.scheduler.Add(rec)
		}
	}

	return def, nil
}

// Delete soft-deletes a job and drops it from the live queue.
func (s *JobService) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	def, err := s.jobRepo.FindByTenantAndID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.jobRepo.Delete(ctx, def.ID); err != nil {
		return err
	}

	s.scheduler.Drop(job.Identity{DatabaseName: def.DatabaseName, JobName: def.JobName})
	return nil
}

// Trigger manually re-dispatches a job's endpoint outside the
// scheduler's own recurrence. It records a pending JobFire row that the
// retry dispatcher's worker fills in once the HTTP call completes.
func (s *JobService) Trigger(ctx context.Context, tenantID, id uuid.UUID) (*models.JobFire, error) {
	def, err := s.jobRepo.FindByTenantAndID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if def.Status != models.JobStatusEnabled && def.Status != models.JobStatusPaused {
		return nil, fmt.Errorf("job cannot be triggered in status: %s", def.Status)
	}

	fire := &models.JobFire{
		ID:          uuid.New(),
		JobID:       def.ID,
		TenantID:    def.TenantID,
		Status:      models.ExecutionStatusPending,
		ScheduledAt: time.Now(),
		Attempt:     1,
	}
	if err := s.executionRepo.Create(ctx, fire); err != nil {
		return nil, fmt.Errorf("failed to create fire record: %w", err)
	}

	accepted := s.retryDispatcher.Submit(payload.RetryTask{
		JobID: fire.ID.String(),
		// A manual trigger always runs the endpoint immediately,
		// regardless of the job's own recurrence precision.
		Spec: endpointSpec(def, false),
	})
	if !accepted {
		s.executionRepo.MarkAsFailed(ctx, fire.ID, "retry dispatcher saturated", nil)
		return nil, fmt.Errorf("retry dispatcher saturated")
	}

	return fire, nil
}

// UpdateStatus updates a job's status and reflects it into the
// scheduler's in-memory record (Paused/Disabled both map to
// job.Disabled).
func (s *JobService) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status models.JobStatus) (*models.JobDefinition, error) {
	def, err := s.jobRepo.FindByTenantAndID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	def.Status = status
	def.UpdatedAt = time.Now()

	if err := s.jobRepo.Update(ctx, def); err != nil {
		return nil, err
	}

	identity := job.Identity{DatabaseName: def.DatabaseName, JobName: def.JobName}
	applied := s.scheduler.Update(identity, func(rec *job.Record) {
		if status == models.JobStatusEnabled {
			rec.Status = job.Enabled
		} else {
			rec.Status = job.Disabled
		}
	})
	if !applied && status == models.JobStatusEnabled {
		if rec, err := s.buildRecord(def, time.Now()); err == nil {
			s.scheduler.Add(rec)
		}
	}

	return def, nil
}

// GetStats retrieves job statistics.
func (s *JobService) GetStats(ctx context.Context, tenantID *uuid.UUID) (*models.JobStats, error) {
	return s.jobRepo.GetStats(ctx, tenantID)
}

func (s *JobService) validateSchedule(jobType models.JobType, schedule string) error {
	switch jobType {
	case models.JobTypeCron:
		if _, err := s.cronParser.Parse(schedule); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	case models.JobTypeInterval:
		var interval float64
		if err := json.Unmarshal([]byte(schedule), &interval); err != nil {
			return fmt.Errorf("invalid interval (should be seconds as a number): %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		// A fractional interval (sub-second precision) is accepted, not
		// rejected: the job is queued and every fire is reported by the
		// payload adapter as ExecUnsupportedPrecision instead.
	case models.JobTypeOneTime:
		// Not parsed here: buildRecord parses the RFC3339 instant, and
		// Create/Update/UpdateStatus leave a definition whose instant does
		// not parse out of the queue without returning an error.
	default:
		return fmt.Errorf("unknown job type: %s", jobType)
	}
	return nil
}

// buildRecord constructs a job.Record from a persisted definition, the
// same way the postgres repository store does at scheduler boot.
func (s *JobService) buildRecord(def *models.JobDefinition, now time.Time) (*job.Record, error) {
	sc, firstFireAt, subSecond, err := payload.NewSchedule(def.Type, def.Schedule, now)
	if err != nil {
		return nil, err
	}
	id := job.Identity{DatabaseName: def.DatabaseName, JobName: def.JobName}
	rec := job.New(id, def.DefinerPrincipal, def.DefinerSchema, sc, firstFireAt)
	if def.Status != models.JobStatusEnabled {
		rec.Status = job.Disabled
	}
	rec.Opaque = endpointSpec(def, subSecond)
	return rec, nil
}

func endpointSpec(def *models.JobDefinition, subSecond bool) payload.EndpointSpec {
	return payload.EndpointSpec{
		TenantID:           def.TenantID.String(),
		Endpoint:           def.Endpoint,
		Method:             def.Method,
		Headers:            def.Headers,
		Payload:            def.Payload,
		Timeout:            time.Duration(def.Timeout) * time.Second,
		MaxRetries:         def.MaxRetries,
		RetryDelay:         time.Duration(def.RetryDelay) * time.Second,
		SubSecondPrecision: subSecond,
	}
}
