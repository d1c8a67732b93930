package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/minisource/schedulerd/internal/models"
	"github.com/minisource/schedulerd/internal/service"
)

// ExecutionHandler handles fire-related HTTP requests.
type ExecutionHandler struct {
	executionService *service.ExecutionService
}

// NewExecutionHandler creates a new execution handler.
func NewExecutionHandler(executionService *service.ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{
		executionService: executionService,
	}
}

// Get retrieves a fire by ID.
// @Summary Get a fire
// @Description Get a job fire by ID
// @Tags executions
// @Produce json
// @Param id path string true "Fire ID"
// @Success 200 {object} Response{data=models.JobFire}
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/executions/{id} [get]
func (h *ExecutionHandler) Get(c *fiber.Ctx) error {
	idStr := c.Params("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return BadRequest(c, "Invalid execution ID")
	}

	fire, err := h.executionService.GetByID(c.Context(), id)
	if err != nil {
		return NotFound(c, "Execution not found")
	}

	return Success(c, fire)
}

// List lists fires with filtering.
// @Summary List executions
// @Description List job fires with optional filtering
// @Tags executions
// @Produce json
// @Param job_id query string false "Filter by job ID"
// @Param status query string false "Filter by status"
// @Param start_time query string false "Filter by start time (RFC3339)"
// @Param end_time query string false "Filter by end time (RFC3339)"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} Response{data=[]models.JobFire}
// @Failure 500 {object} Response
// @Router /api/v1/executions [get]
func (h *ExecutionHandler) List(c *fiber.Ctx) error {
	tenantID := getTenantID(c)

	filter := models.ExecutionFilter{
		TenantID: &tenantID,
		Status:   models.ExecutionStatus(c.Query("status")),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}

	if jobIDStr := c.Query("job_id"); jobIDStr != "" {
		jobID, err := uuid.Parse(jobIDStr)
		if err == nil {
			filter.JobID = &jobID
		}
	}

	if startTimeStr := c.Query("start_time"); startTimeStr != "" {
		if startTime, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			filter.StartTime = &startTime
		}
	}

	if endTimeStr := c.Query("end_time"); endTimeStr != "" {
		if endTime, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			filter.EndTime = &endTime
		}
	}

	result, err := h.executionService.List(c.Context(), filter)
	if err != nil {
		return InternalError(c, err.Error())
	}

	return SuccessWithMeta(c, result.Executions, &Meta{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		HasMore:    result.HasMore,
	})
}

// ListByJob lists fires for a specific job.
// @Summary List executions by job
// @Description List fires for a specific job
// @Tags executions
// @Produce json
// @Param job_id path string true "Job ID"
// @Param limit query int false "Limit" default(10)
// @Success 200 {object} Response{data=[]models.JobFire}
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/jobs/{job_id}/executions [get]
func (h *ExecutionHandler) ListByJob(c *fiber.Ctx) error {
	jobIDStr := c.Params("job_id")
	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return BadRequest(c, "Invalid job ID")
	}

	limit := c.QueryInt("limit", 10)

	fires, err := h.executionService.GetByJobID(c.Context(), jobID, limit)
	if err != nil {
		return InternalError(c, err.Error())
	}

	return Success(c, fires)
}

// Cancel cancels a fire.
// @Summary Cancel an execution
// @Description Cancel a pending or running fire
// @Tags executions
// @Param id path string true "Fire ID"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/executions/{id}/cancel [post]
func (h *ExecutionHandler) Cancel(c *fiber.Ctx) error {
	idStr := c.Params("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return BadRequest(c, "Invalid execution ID")
	}

	if err := h.executionService.Cancel(c.Context(), id); err != nil {
		return InternalError(c, err.Error())
	}

	return Success(c, map[string]bool{"cancelled": true})
}

// GetStats retrieves fire statistics.
// @Summary Get execution statistics
// @Description Get statistics about fires
// @Tags executions
// @Produce json
// @Param start_time query string false "Start time (RFC3339)"
// @Param end_time query string false "End time (RFC3339)"
// @Success 200 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/executions/stats [get]
func (h *ExecutionHandler) GetStats(c *fiber.Ctx) error {
	tenantID := getTenantID(c)

	endTime := time.Now()
	startTime := endTime.Add(-24 * time.Hour)

	if startTimeStr := c.Query("start_time"); startTimeStr != "" {
		if t, err := time.Parse(time.RFC3339, startTimeStr); err == nil {
			startTime = t
		}
	}

	if endTimeStr := c.Query("end_time"); endTimeStr != "" {
		if t, err := time.Parse(time.RFC3339, endTimeStr); err == nil {
			endTime = t
		}
	}

	stats, err := h.executionService.GetStats(c.Context(), &tenantID, startTime, endTime)
	if err != nil {
		return InternalError(c, err.Error())
	}

	return Success(c, stats)
}
