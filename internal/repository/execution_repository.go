package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/minisource/schedulerd/internal/models"
	"gorm.io/gorm"
)

// ExecutionRepository handles job fire persistence.
type ExecutionRepository struct {
	db *gorm.DB
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *gorm.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create creates a new fire record.
func (r *ExecutionRepository) Create(ctx context.Context, fire *models.JobFire) error {
	return r.db.WithContext(ctx).Create(fire).Error
}

// Update updates a fire record.
func (r *ExecutionRepository) Update(ctx context.Context, fire *models.JobFire) error {
	return r.db.WithContext(ctx).Save(fire).Error
}

// FindByID retrieves a fire by ID.
func (r *ExecutionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.JobFire, error) {
	var fire models.JobFire
	err := r.db.WithContext(ctx).First(&fire, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &fire, nil
}

// Query finds fires matching the filter.
func (r *ExecutionRepository) Query(ctx context.Context, filter models.ExecutionFilter) (*models.ExecutionListResult, error) {
	var fires []models.JobFire
	var total int64

	query := r.buildQuery(filter)

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
	err := query.Order("scheduled_at DESC").Offset(offset).Limit(pageSize).Find(&fires).Error
	if err != nil {
		return nil, err
	}

	return &models.ExecutionListResult{
		Executions: fires,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    int64((page)*pageSize) < total,
	}, nil
}

// buildQuery creates the GORM query from filter.
func (r *ExecutionRepository) buildQuery(filter models.ExecutionFilter) *gorm.DB {
	query := r.db.Model(&models.JobFire{})

	if filter.JobID != nil {
		query = query.Where("job_id = ?", filter.JobID)
	}

	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if filter.StartTime != nil {
		query = query.Where("scheduled_at >= ?", filter.StartTime)
	}

	if filter.EndTime != nil {
		query = query.Where("scheduled_at <= ?", filter.EndTime)
	}

	return query
}

// FindByJobID retrieves fires for a job.
func (r *ExecutionRepository) FindByJobID(ctx context.Context, jobID uuid.UUID, limit int) ([]models.JobFire, error) {
	var fires []models.JobFire
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("scheduled_at DESC").
		Limit(limit).
		Find(&fires).Error
	return fires, err
}

// FindRunning finds currently running fires, used at boot to reconcile
// fire rows left dangling by an unclean shutdown.
func (r *ExecutionRepository) FindRunning(ctx context.Context) ([]models.JobFire, error) {
	var fires []models.JobFire
	err := r.db.WithContext(ctx).
		Where("status = ?", models.ExecutionStatusRunning).
		Find(&fires).Error
	return fires, err
}

// MarkAsRunning marks a fire as running.
func (r *ExecutionRepository) MarkAsRunning(ctx context.Context, id uuid.UUID, runnerID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.JobFire{}).
		Where("id = ?", id).
		Where("status = ?", models.ExecutionStatusPending).
		Updates(map[string]interface{}{
			"status":     models.ExecutionStatusRunning,
			"started_at": now,
			"runner_id":  runnerID,
			"updated_at": now,
		}).Error
}

// MarkAsCompleted marks a fire as completed.
func (r *ExecutionRepository) MarkAsCompleted(ctx context.Context, id uuid.UUID, statusCode int, response []byte) error {
	now := time.Now()

	var fire models.JobFire
	if err := r.db.WithContext(ctx).First(&fire, "id = ?", id).Error; err != nil {
		return err
	}

	var duration int64
	if fire.StartedAt != nil {
		duration = now.Sub(*fire.StartedAt).Milliseconds()
	}

	return r.db.WithContext(ctx).
		Model(&models.JobFire{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.ExecutionStatusCompleted,
			"completed_at": now,
			"duration":     duration,
			"status_code":  statusCode,
			"response":     response,
			"updated_at":   now,
		}).Error
}

// MarkAsFailed marks a fire as failed.
func (r *ExecutionRepository) MarkAsFailed(ctx context.Context, id uuid.UUID, errMsg string, statusCode *int) error {
	now := time.Now()

	var fire models.JobFire
	if err := r.db.WithContext(ctx).First(&fire, "id = ?", id).Error; err != nil {
		return err
	}

	var duration int64
	if fire.StartedAt != nil {
		duration = now.Sub(*fire.StartedAt).Milliseconds()
	}

	updates := map[string]interface{}{
		"status":       models.ExecutionStatusFailed,
		"completed_at": now,
		"duration":     duration,
		"error":        errMsg,
		"updated_at":   now,
	}

	if statusCode != nil {
		updates["status_code"] = *statusCode
	}

	return r.db.WithContext(ctx).
		Model(&models.JobFire{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// MarkAsRetrying marks a fire for retry.
func (r *ExecutionRepository) MarkAsRetrying(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&models.JobFire{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.ExecutionStatusRetrying,
			"error":      errMsg,
			"attempt":    gorm.Expr("attempt + 1"),
			"updated_at": time.Now(),
		}).Error
}

// CancelExecution cancels a fire.
func (r *ExecutionRepository) CancelExecution(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.JobFire{}).
		Where("id = ?", id).
		Where("status IN ?", []models.ExecutionStatus{models.ExecutionStatusPending, models.ExecutionStatusRunning}).
		Updates(map[string]interface{}{
			"status":       models.ExecutionStatusCancelled,
			"completed_at": time.Now(),
			"updated_at":   time.Now(),
		}).Error
}

// CleanupOld removes old fire records.
func (r *ExecutionRepository) CleanupOld(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", before).
		Where("status IN ?", []models.ExecutionStatus{
			models.ExecutionStatusCompleted,
			models.ExecutionStatusFailed,
			models.ExecutionStatusCancelled,
		}).
		Delete(&models.JobFire{})
	return result.RowsAffected, result.Error
}

// GetExecutionStats gets fire statistics for a time period.
func (r *ExecutionRepository) GetExecutionStats(ctx context.Context, tenantID *uuid.UUID, startTime, endTime time.Time) (map[string]int64, error) {
	stats := make(map[string]int64)

	query := r.db.WithContext(ctx).Model(&models.JobFire{}).
		Where("scheduled_at >= ? AND scheduled_at <= ?", startTime, endTime)

	if tenantID != nil {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var total int64
	query.Count(&total)
	stats["total"] = total

	for _, status := range []models.ExecutionStatus{
		models.ExecutionStatusCompleted,
		models.ExecutionStatusFailed,
		models.ExecutionStatusCancelled,
	} {
		var count int64
		r.db.Model(&models.JobFire{}).
			Where("scheduled_at >= ? AND scheduled_at <= ?", startTime, endTime).
			Where("status = ?", status).
			Count(&count)
		stats[string(status)] = count
	}

	return stats, nil
}
