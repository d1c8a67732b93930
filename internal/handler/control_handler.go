package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/minisource/schedulerd/internal/sched"
)

// ControlHandler exposes the scheduler core's control and diagnostic
// surface (spec.md §6) over HTTP: init/start/suspend/resume/stop/kill
// and a status dump, so an operator can drive the same lifecycle
// transitions a DBA drives against MySQL's Event Scheduler.
type ControlHandler struct {
	scheduler *sched.Scheduler
}

// NewControlHandler creates a new control handler.
func NewControlHandler(scheduler *sched.Scheduler) *ControlHandler {
	return &ControlHandler{scheduler: scheduler}
}

// Status reports the scheduler's lifecycle state and diagnostic rows.
// @Summary Scheduler status
// @Description Get scheduler lifecycle state and diagnostics
// @Tags control
// @Produce json
// @Success 200 {object} Response
// @Router /api/v1/control/status [get]
func (h *ControlHandler) Status(c *fiber.Ctx) error {
	rows := h.scheduler.DumpStatus()
	status := make(map[string]string, len(rows))
	for _, row := range rows {
		status[row[0]] = row[1]
	}
	return Success(c, status)
}

// Start boots the manager, per spec.md §4.5.
// @Summary Start the scheduler
// @Tags control
// @Success 200 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/control/start [post]
func (h *ControlHandler) Start(c *fiber.Ctx) error {
	h.scheduler.Init()
	if err := h.scheduler.Start(c.Context()); err != nil {
		return Conflict(c, err.Error())
	}
	return Success(c, map[string]string{"state": h.scheduler.State().String()})
}

// StartSuspended boots the manager directly into Suspended.
// @Summary Start the scheduler suspended
// @Tags control
// @Success 200 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/control/start-suspended [post]
func (h *ControlHandler) StartSuspended(c *fiber.Ctx) error {
	h.scheduler.Init()
	if err := h.scheduler.StartSuspended(c.Context()); err != nil {
		return Conflict(c, err.Error())
	}
	return Success(c, map[string]string{"state": h.scheduler.State().String()})
}

// Suspend transitions Running -> Suspended.
// @Summary Suspend the scheduler
// @Tags control
// @Success 200 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/control/suspend [post]
func (h *ControlHandler) Suspend(c *fiber.Ctx) error {
	if err := h.scheduler.Suspend(c.Context()); err != nil {
		return Conflict(c, err.Error())
	}
	return Success(c, map[string]string{"state": h.scheduler.State().String()})
}

// Resume transitions Suspended -> Running.
// @Summary Resume the scheduler
// @Tags control
// @Success 200 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/control/resume [post]
func (h *ControlHandler) Resume(c *fiber.Ctx) error {
	if err := h.scheduler.Resume(c.Context()); err != nil {
		return Conflict(c, err.Error())
	}
	return Success(c, map[string]string{"state": h.scheduler.State().String()})
}

// Stop drains running workers and returns the manager to Initialized.
// @Summary Stop the scheduler
// @Tags control
// @Success 200 {object} Response
// @Failure 409 {object} Response
// @Router /api/v1/control/stop [post]
func (h *ControlHandler) Stop(c *fiber.Ctx) error {
	if err := h.scheduler.Stop(c.Context()); err != nil {
		return Conflict(c, err.Error())
	}
	return Success(c, map[string]string{"state": h.scheduler.State().String()})
}

// Kill delivers an external cancellation of the manager task, treated
// as an implicit suspend per spec.md §5.
// @Summary Cancel the manager task
// @Tags control
// @Success 200 {object} Response
// @Router /api/v1/control/kill [post]
func (h *ControlHandler) Kill(c *fiber.Ctx) error {
	h.scheduler.Kill()
	return Success(c, map[string]string{"state": h.scheduler.State().String()})
}
