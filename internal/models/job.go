package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType represents the recurrence shape of a job definition.
type JobType string

const (
	JobTypeCron     JobType = "cron"     // Recurring cron expression
	JobTypeOneTime  JobType = "one_time" // Fires once at a fixed instant
	JobTypeInterval JobType = "interval" // Fires every fixed duration
)

// JobStatus represents the persisted status of a job definition. Enabled
// maps to the in-memory scheduler core's job.Enabled; Paused and
// Disabled both map to job.Disabled (Paused additionally records that a
// human, not the recurrence engine, requested the pause); Deleted rows
// are excluded from Repository.LoadAll entirely.
type JobStatus string

const (
	JobStatusEnabled  JobStatus = "enabled"
	JobStatusPaused   JobStatus = "paused"
	JobStatusDisabled JobStatus = "disabled"
	JobStatusDeleted  JobStatus = "deleted"
)

// ExecutionStatus represents the status of a single job fire.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusRetrying  ExecutionStatus = "retrying"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
	ExecutionStatusTimeout   ExecutionStatus = "timeout"
)

// JobDefinition is the persisted form of a scheduler job. It carries
// both the (database_name, job_name) identity the scheduler core keys
// on and the HTTP payload describing what a fire actually does.
type JobDefinition struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;index:idx_jobs_tenant"`

	DatabaseName string `json:"database_name" gorm:"type:varchar(255);not null;uniqueIndex:idx_jobs_identity"`
	JobName      string `json:"job_name" gorm:"type:varchar(255);not null;uniqueIndex:idx_jobs_identity"`

	DefinerPrincipal string `json:"definer_principal,omitempty" gorm:"type:varchar(255)"`
	DefinerSchema    string `json:"definer_schema,omitempty" gorm:"type:varchar(255)"`

	Description string          `json:"description,omitempty" gorm:"type:text"`
	Type        JobType         `json:"type" gorm:"type:varchar(20);not null;index:idx_jobs_type"`
	Status      JobStatus       `json:"status" gorm:"type:varchar(20);not null;default:'enabled';index:idx_jobs_status"`
	Schedule    string          `json:"schedule" gorm:"type:varchar(100)"` // cron expr, JSON number of seconds, or RFC3339 instant
	Timezone    string          `json:"timezone" gorm:"type:varchar(50);default:'UTC'"`
	Preserve    bool            `json:"preserve" gorm:"default:false"` // keep the row after recurrence is exhausted instead of dropping it
	Endpoint    string          `json:"endpoint" gorm:"type:varchar(500);not null"`
	Method      string          `json:"method" gorm:"type:varchar(10);default:'POST'"`
	Headers     json.RawMessage `json:"headers,omitempty" gorm:"type:jsonb"`
	Payload     json.RawMessage `json:"payload,omitempty" gorm:"type:jsonb"`
	Timeout     int             `json:"timeout" gorm:"default:30"`
	MaxRetries  int             `json:"max_retries" gorm:"default:3"`
	RetryDelay  int             `json:"retry_delay" gorm:"default:60"`
	Priority    int             `json:"priority" gorm:"default:5;index:idx_jobs_priority"`
	Tags        json.RawMessage `json:"tags,omitempty" gorm:"type:jsonb"`
	Metadata    json.RawMessage `json:"metadata,omitempty" gorm:"type:jsonb"`

	NextFireAt *time.Time `json:"next_fire_at,omitempty" gorm:"index:idx_jobs_next_fire"`
	LastFireAt *time.Time `json:"last_fire_at,omitempty"`
	RunCount   int64      `json:"run_count" gorm:"default:0"`
	FailCount  int64      `json:"fail_count" gorm:"default:0"`

	CreatedBy *uuid.UUID `json:"created_by,omitempty" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (JobDefinition) TableName() string {
	return "jobs"
}

// JobFire represents a single execution (firing) of a job.
type JobFire struct {
	ID          uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	JobID       uuid.UUID       `json:"job_id" gorm:"type:uuid;not null;index:idx_fires_job"`
	TenantID    uuid.UUID       `json:"tenant_id" gorm:"type:uuid;index:idx_fires_tenant"`
	Status      ExecutionStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_fires_status"`
	ScheduledAt time.Time       `json:"scheduled_at" gorm:"not null;index:idx_fires_scheduled"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Duration    *int64          `json:"duration_ms,omitempty"`
	Attempt     int             `json:"attempt" gorm:"default:1"`
	RunnerID    string          `json:"runner_id,omitempty" gorm:"type:varchar(100)"`
	Request     json.RawMessage `json:"request,omitempty" gorm:"type:jsonb"`
	Response    json.RawMessage `json:"response,omitempty" gorm:"type:jsonb"`
	StatusCode  *int            `json:"status_code,omitempty"`
	Error       string          `json:"error,omitempty" gorm:"type:text"`
	TraceID     string          `json:"trace_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (JobFire) TableName() string {
	return "job_fires"
}

// JobHistory represents a day's worth of aggregated fire statistics.
type JobHistory struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	JobID         uuid.UUID `json:"job_id" gorm:"type:uuid;not null;index:idx_history_job"`
	TenantID      uuid.UUID `json:"tenant_id" gorm:"type:uuid;index:idx_history_tenant"`
	Date          time.Time `json:"date" gorm:"type:date;not null;index:idx_history_date"`
	TotalRuns     int64     `json:"total_runs" gorm:"default:0"`
	SuccessCount  int64     `json:"success_count" gorm:"default:0"`
	FailureCount  int64     `json:"failure_count" gorm:"default:0"`
	TotalDuration int64     `json:"total_duration_ms" gorm:"default:0"`
	AvgDuration   int64     `json:"avg_duration_ms" gorm:"default:0"`
	MinDuration   int64     `json:"min_duration_ms"`
	MaxDuration   int64     `json:"max_duration_ms"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (JobHistory) TableName() string {
	return "job_history"
}

// CreateJobRequest represents a request to create a new job definition.
type CreateJobRequest struct {
	DatabaseName     string          `json:"database_name" validate:"required,min=1,max=255"`
	JobName          string          `json:"job_name" validate:"required,min=1,max=255"`
	DefinerPrincipal string          `json:"definer_principal,omitempty"`
	DefinerSchema    string          `json:"definer_schema,omitempty"`
	Description      string          `json:"description,omitempty"`
	Type             JobType         `json:"type" validate:"required,oneof=cron one_time interval"`
	Schedule         string          `json:"schedule" validate:"required"`
	Timezone         string          `json:"timezone,omitempty"`
	Preserve         bool            `json:"preserve,omitempty"`
	Endpoint         string          `json:"endpoint" validate:"required,url"`
	Method           string          `json:"method,omitempty"`
	Headers          json.RawMessage `json:"headers,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	Timeout          int             `json:"timeout,omitempty"`
	MaxRetries       int             `json:"max_retries,omitempty"`
	RetryDelay       int             `json:"retry_delay,omitempty"`
	Priority         int             `json:"priority,omitempty"`
	Tags             json.RawMessage `json:"tags,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}

// UpdateJobRequest represents a request to update a job definition.
type UpdateJobRequest struct {
	Description *string          `json:"description,omitempty"`
	Schedule    *string          `json:"schedule,omitempty"`
	Timezone    *string          `json:"timezone,omitempty"`
	Preserve    *bool            `json:"preserve,omitempty"`
	Endpoint    *string          `json:"endpoint,omitempty"`
	Method      *string          `json:"method,omitempty"`
	Headers     *json.RawMessage `json:"headers,omitempty"`
	Payload     *json.RawMessage `json:"payload,omitempty"`
	Timeout     *int             `json:"timeout,omitempty"`
	MaxRetries  *int             `json:"max_retries,omitempty"`
	RetryDelay  *int             `json:"retry_delay,omitempty"`
	Priority    *int             `json:"priority,omitempty"`
	Tags        *json.RawMessage `json:"tags,omitempty"`
	Metadata    *json.RawMessage `json:"metadata,omitempty"`
}

// JobFilter represents query filters for listing jobs.
type JobFilter struct {
	TenantID     *uuid.UUID `json:"tenant_id,omitempty"`
	Status       JobStatus  `json:"status,omitempty"`
	Type         JobType    `json:"type,omitempty"`
	DatabaseName string     `json:"database_name,omitempty"`
	JobName      string     `json:"job_name,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Page         int        `json:"page,omitempty"`
	PageSize     int        `json:"page_size,omitempty"`
}

// ExecutionFilter represents query filters for listing fires.
type ExecutionFilter struct {
	JobID     *uuid.UUID      `json:"job_id,omitempty"`
	TenantID  *uuid.UUID      `json:"tenant_id,omitempty"`
	Status    ExecutionStatus `json:"status,omitempty"`
	StartTime *time.Time      `json:"start_time,omitempty"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
	Page      int             `json:"page,omitempty"`
	PageSize  int             `json:"page_size,omitempty"`
}

// JobStats represents aggregated job statistics.
type JobStats struct {
	TotalJobs     int64               `json:"total_jobs"`
	EnabledJobs   int64               `json:"enabled_jobs"`
	PausedJobs    int64               `json:"paused_jobs"`
	TotalRuns     int64               `json:"total_runs"`
	SuccessRate   float64             `json:"success_rate"`
	AvgDuration   float64             `json:"avg_duration_ms"`
	JobsByType    map[JobType]int64   `json:"jobs_by_type"`
	JobsByStatus  map[JobStatus]int64 `json:"jobs_by_status"`
	RunsToday     int64               `json:"runs_today"`
	FailuresToday int64               `json:"failures_today"`
}

// JobListResult represents paginated job results.
type JobListResult struct {
	Jobs       []JobDefinition `json:"jobs"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	HasMore    bool            `json:"has_more"`
}

// ExecutionListResult represents paginated fire results.
type ExecutionListResult struct {
	Executions []JobFire `json:"executions"`
	TotalCount int64     `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	HasMore    bool      `json:"has_more"`
}

// AggregatedHistoryStats contains aggregated statistics over a date range.
type AggregatedHistoryStats struct {
	TotalSuccess  int64   `json:"total_success"`
	TotalFailure  int64   `json:"total_failure"`
	TotalDuration int64   `json:"total_duration"`
	AvgDuration   float64 `json:"avg_duration"`
	MinDuration   int64   `json:"min_duration"`
	MaxDuration   int64   `json:"max_duration"`
	SuccessRate   float64 `json:"success_rate"`
}
