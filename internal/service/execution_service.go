package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/minisource/schedulerd/internal/models"
	"github.com/minisource/schedulerd/internal/repository"
)

// ExecutionService handles job fire business logic.
type ExecutionService struct {
	executionRepo *repository.ExecutionRepository
}

// NewExecutionService creates a new execution service.
func NewExecutionService(executionRepo *repository.ExecutionRepository) *ExecutionService {
	return &ExecutionService{
		executionRepo: executionRepo,
	}
}

// GetByID retrieves a fire by ID.
func (s *ExecutionService) GetByID(ctx context.Context, id uuid.UUID) (*models.JobFire, error) {
	return s.executionRepo.FindByID(ctx, id)
}

// List lists fires with filtering.
func (s *ExecutionService) List(ctx context.Context, filter models.ExecutionFilter) (*models.ExecutionListResult, error) {
	return s.executionRepo.Query(ctx, filter)
}

// GetByJobID retrieves fires for a job.
func (s *ExecutionService) GetByJobID(ctx context.Context, jobID uuid.UUID, limit int) ([]models.JobFire, error) {
	return s.executionRepo.FindByJobID(ctx, jobID, limit)
}

// Cancel cancels a fire.
func (s *ExecutionService) Cancel(ctx context.Context, id uuid.UUID) error {
	return s.executionRepo.CancelExecution(ctx, id)
}

// GetStats retrieves fire statistics.
func (s *ExecutionService) GetStats(ctx context.Context, tenantID *uuid.UUID, startTime, endTime time.Time) (map[string]int64, error) {
	return s.executionRepo.GetExecutionStats(ctx, tenantID, startTime, endTime)
}

// GetRunning retrieves currently running fires.
func (s *ExecutionService) GetRunning(ctx context.Context) ([]models.JobFire, error) {
	return s.executionRepo.FindRunning(ctx)
}
