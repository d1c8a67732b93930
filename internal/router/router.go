package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/minisource/schedulerd/internal/handler"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	Job       *handler.JobHandler
	Execution *handler.ExecutionHandler
	History   *handler.HistoryHandler
	Health    *handler.HealthHandler
	Control   *handler.ControlHandler
}

// SetupRouter configures the Fiber router.
func SetupRouter(app *fiber.App, h *Handlers) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Tenant-ID,X-Request-ID",
	}))

	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", h.Health.Health)
	app.Get("/ready", h.Health.Ready)
	app.Get("/live", h.Health.Live)

	v1 := app.Group("/api/v1")

	jobs := v1.Group("/jobs")
	jobs.Get("/stats", h.Job.GetStats)
	jobs.Get("/", h.Job.List)
	jobs.Post("/", h.Job.Create)
	jobs.Get("/:id", h.Job.Get)
	jobs.Put("/:id", h.Job.Update)
	jobs.Delete("/:id", h.Job.Delete)
	jobs.Post("/:id/trigger", h.Job.Trigger)
	jobs.Post("/:id/pause", h.Job.Pause)
	jobs.Post("/:id/resume", h.Job.Resume)
	jobs.Get("/:job_id/executions", h.Execution.ListByJob)
	jobs.Get("/:job_id/history", h.History.GetByJob)

	executions := v1.Group("/executions")
	executions.Get("/stats", h.Execution.GetStats)
	executions.Get("/", h.Execution.List)
	executions.Get("/:id", h.Execution.Get)
	executions.Post("/:id/cancel", h.Execution.Cancel)

	history := v1.Group("/history")
	history.Get("/stats", h.History.GetAggregated)
	history.Get("/", h.History.GetDateRange)

	// Control surface: spec.md §6's init/start/suspend/resume/stop/kill
	// and diagnostic status dump, mapped onto the scheduler core handle.
	control := v1.Group("/control")
	control.Get("/status", h.Control.Status)
	control.Post("/start", h.Control.Start)
	control.Post("/start-suspended", h.Control.StartSuspended)
	control.Post("/suspend", h.Control.Suspend)
	control.Post("/resume", h.Control.Resume)
	control.Post("/stop", h.Control.Stop)
	control.Post("/kill", h.Control.Kill)
}
