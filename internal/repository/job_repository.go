package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minisource/schedulerd/internal/models"
	"gorm.io/gorm"
)

// JobRepository handles job definition persistence.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job definition.
func (r *JobRepository) Create(ctx context.Context, job *models.JobDefinition) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Update updates a job definition.
func (r *JobRepository) Update(ctx context.Context, job *models.JobDefinition) error {
	return r.db.WithContext(ctx).Save(job).Error
}

// FindByID retrieves a job by ID.
func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.JobDefinition, error) {
	var job models.JobDefinition
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByIdentity retrieves a job by its (database_name, job_name) key.
func (r *JobRepository) FindByIdentity(ctx context.Context, databaseName, jobName string) (*models.JobDefinition, error) {
	var job models.JobDefinition
	err := r.db.WithContext(ctx).
		First(&job, "database_name = ? AND job_name = ?", databaseName, jobName).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByTenantAndID retrieves a job by tenant and ID.
func (r *JobRepository) FindByTenantAndID(ctx context.Context, tenantID, id uuid.UUID) (*models.JobDefinition, error) {
	var job models.JobDefinition
	err := r.db.WithContext(ctx).First(&job, "id = ? AND tenant_id = ?", id, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Query finds jobs matching the filter.
func (r *JobRepository) Query(ctx context.Context, filter models.JobFilter) (*models.JobListResult, error) {
	var jobs []models.JobDefinition
	var total int64

	query := r.buildJobQuery(filter)

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&jobs).Error
	if err != nil {
		return nil, err
	}

	return &models.JobListResult{
		Jobs:       jobs,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64((page)*pageSize) < total,
	}, nil
}

// buildJobQuery creates the GORM query from filter.
func (r *JobRepository) buildJobQuery(filter models.JobFilter) *gorm.DB {
	query := r.db.Model(&models.JobDefinition{})

	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	} else {
		query = query.Where("status != ?", models.JobStatusDeleted)
	}

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	if filter.DatabaseName != "" {
		query = query.Where("database_name = ?", filter.DatabaseName)
	}

	if filter.JobName != "" {
		query = query.Where("LOWER(job_name) LIKE ?", "%"+strings.ToLower(filter.JobName)+"%")
	}

	return query
}

// FindLoadable finds all jobs the scheduler core should hold in memory:
// everything except soft-deleted rows. Disabled/paused rows are still
// loaded, so the in-memory job.Record can represent them as
// job.Disabled rather than omitting them outright.
func (r *JobRepository) FindLoadable(ctx context.Context) ([]models.JobDefinition, error) {
	var jobs []models.JobDefinition
	err := r.db.WithContext(ctx).
		Where("status != ?", models.JobStatusDeleted).
		Find(&jobs).Error
	return jobs, err
}

// UpdateNextFireAt updates the next fire time for a job.
func (r *JobRepository) UpdateNextFireAt(ctx context.Context, id uuid.UUID, nextFireAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.JobDefinition{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"next_fire_at": nextFireAt,
			"updated_at":   time.Now(),
		}).Error
}

// UpdateLastFireAt updates the last fire time and counters.
func (r *JobRepository) UpdateLastFireAt(ctx context.Context, id uuid.UUID, success bool) error {
	updates := map[string]interface{}{
		"last_fire_at": time.Now(),
		"updated_at":   time.Now(),
	}

	if success {
		updates["run_count"] = gorm.Expr("run_count + 1")
	} else {
		updates["fail_count"] = gorm.Expr("fail_count + 1")
	}

	return r.db.WithContext(ctx).
		Model(&models.JobDefinition{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateStatus updates job status.
func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.JobDefinition{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// Delete soft-deletes a job.
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.JobDefinition{}).
		Where("id = ?", id).
		Update("status", models.JobStatusDeleted).Error
}

// DeleteByIdentity hard-deletes a job row by its (database_name,
// job_name) key. Used by the scheduler core's Repository.DropPersisted
// for one-shot jobs that finished without Preserve set.
func (r *JobRepository) DeleteByIdentity(ctx context.Context, databaseName, jobName string) error {
	return r.db.WithContext(ctx).
		Where("database_name = ? AND job_name = ?", databaseName, jobName).
		Delete(&models.JobDefinition{}).Error
}

// GetStats retrieves job statistics.
func (r *JobRepository) GetStats(ctx context.Context, tenantID *uuid.UUID) (*models.JobStats, error) {
	stats := &models.JobStats{
		JobsByType:   make(map[models.JobType]int64),
		JobsByStatus: make(map[models.JobStatus]int64),
	}

	query := r.db.WithContext(ctx).Model(&models.JobDefinition{})
	if tenantID != nil {
		query = query.Where("tenant_id = ?", tenantID)
	}

	query.Where("status != ?", models.JobStatusDeleted).Count(&stats.TotalJobs)

	r.db.Model(&models.JobDefinition{}).Where("status = ?", models.JobStatusEnabled).Count(&stats.EnabledJobs)
	r.db.Model(&models.JobDefinition{}).Where("status = ?", models.JobStatusPaused).Count(&stats.PausedJobs)

	var typeResults []struct {
		Type  models.JobType
		Count int64
	}
	r.db.Model(&models.JobDefinition{}).
		Select("type, COUNT(*) as count").
		Where("status != ?", models.JobStatusDeleted).
		Group("type").Scan(&typeResults)

	for _, tr := range typeResults {
		stats.JobsByType[tr.Type] = tr.Count
	}

	var statusResults []struct {
		Status models.JobStatus
		Count  int64
	}
	r.db.Model(&models.JobDefinition{}).
		Select("status, COUNT(*) as count").
		Group("status").Scan(&statusResults)

	for _, sr := range statusResults {
		stats.JobsByStatus[sr.Status] = sr.Count
	}

	return stats, nil
}
