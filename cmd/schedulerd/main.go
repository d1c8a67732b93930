package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/minisource/schedulerd/config"
	"github.com/minisource/schedulerd/internal/database"
	"github.com/minisource/schedulerd/internal/handler"
	"github.com/minisource/schedulerd/internal/identity"
	"github.com/minisource/schedulerd/internal/lock"
	"github.com/minisource/schedulerd/internal/payload"
	"github.com/minisource/schedulerd/internal/repository"
	"github.com/minisource/schedulerd/internal/repository/postgres"
	"github.com/minisource/schedulerd/internal/router"
	"github.com/minisource/schedulerd/internal/sched"
	"github.com/minisource/schedulerd/internal/sched/clock"
	"github.com/minisource/schedulerd/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	entry := log.WithField("service", "schedulerd")

	db, err := database.NewPostgresConnection(&cfg.Postgres)
	if err != nil {
		entry.WithError(err).Fatal("failed to connect to database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		entry.WithError(err).Fatal("failed to auto-migrate")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		entry.WithError(err).Fatal("failed to connect to redis")
	}

	// Repositories
	jobRepo := repository.NewJobRepository(db)
	executionRepo := repository.NewExecutionRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	_ = historyRepo // wired into HistoryService below

	// Scheduler core adapters
	store := postgres.NewStore(jobRepo)
	identityAdapter := identity.NewAdapter(db)
	httpExecutor := payload.NewHTTPExecutor(&http.Client{Timeout: 60 * time.Second})

	scheduler := sched.New(store, httpExecutor, identityAdapter, clock.New(), entry)
	scheduler.Init()

	// Leadership gate: only the instance holding the Redis lock runs the
	// manager un-suspended, so a multi-replica deployment never double-fires.
	instanceID := fmt.Sprintf("schedulerd-%s", uuid.New().String()[:8])
	locker := lock.NewDistributedLocker(redisClient, instanceID)
	instanceLock := lock.NewInstanceLock(locker, cfg.Postgres.DBName, time.Duration(cfg.Scheduler.InstanceLockTTLSeconds)*time.Second)

	isLeader, err := instanceLock.AcquireLeadership(ctx)
	if err != nil {
		entry.WithError(err).Warn("leadership acquisition failed, starting suspended")
	}
	if isLeader {
		err = scheduler.Start(ctx)
	} else {
		err = scheduler.StartSuspended(ctx)
	}
	if err != nil {
		entry.WithError(err).Fatal("failed to start scheduler")
	}

	stopLeaderLoop := make(chan struct{})
	go leadershipLoop(entry, scheduler, instanceLock, cfg, stopLeaderLoop)

	// Retry dispatcher for manually-triggered re-fires.
	retryDispatcher := payload.NewRetryDispatcher(cfg.Scheduler.RetryWorkerCount, func(task payload.RetryTask) {
		fireID, err := uuid.Parse(task.JobID)
		if err != nil {
			return
		}
		result, err := httpExecutor.ExecuteWithRetry(ctx, task.Spec)
		if err != nil {
			statusCode := 0
			if result != nil {
				statusCode = result.StatusCode
			}
			executionRepo.MarkAsFailed(ctx, fireID, err.Error(), &statusCode)
			return
		}
		executionRepo.MarkAsCompleted(ctx, fireID, result.StatusCode, result.Body)
	})
	retryDispatcher.Start(ctx)
	defer retryDispatcher.Stop()

	// Services
	jobService := service.NewJobService(jobRepo, executionRepo, scheduler, retryDispatcher)
	executionService := service.NewExecutionService(executionRepo)
	historyService := service.NewHistoryService(historyRepo)

	handlers := &router.Handlers{
		Job:       handler.NewJobHandler(jobService),
		Execution: handler.NewExecutionHandler(executionService),
		History:   handler.NewHistoryHandler(historyService),
		Health:    handler.NewHealthHandler(db, scheduler),
		Control:   handler.NewControlHandler(scheduler),
	}

	app := fiber.New(fiber.Config{
		AppName:      "schedulerd",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	})
	router.SetupRouter(app, handlers)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		entry.WithField("addr", addr).Info("starting http server")
		if err := app.Listen(addr); err != nil {
			entry.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	entry.Info("shutting down")

	close(stopLeaderLoop)
	instanceLock.ReleaseLeadership(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		entry.WithError(err).Warn("scheduler stop error")
	}

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel2()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		entry.WithError(err).Warn("http server shutdown error")
	}

	entry.Info("stopped")
}

// leadershipLoop refreshes this instance's leadership lock on a
// heartbeat, resuming the manager when leadership is won and suspending
// it when leadership is lost to another instance.
func leadershipLoop(entry *logrus.Entry, scheduler *sched.Scheduler, instanceLock *lock.InstanceLock, cfg *config.Config, stop <-chan struct{}) {
	interval := time.Duration(cfg.Scheduler.HeartbeatSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := instanceLock.RefreshLeadership(ctx)
			if err != nil {
				entry.WithError(err).Warn("leadership refresh failed")
			}
			if !held {
				// RefreshLeadership only extends a lock this instance
				// already owns; also try a fresh acquire so a follower
				// can take over once the prior leader's TTL lapses.
				acquired, acqErr := instanceLock.AcquireLeadership(ctx)
				if acqErr != nil {
					entry.WithError(acqErr).Warn("leadership acquisition failed")
				}
				held = acquired
			}
			if held {
				if scheduler.State() == sched.Suspended {
					entry.Info("leadership acquired, resuming manager")
					scheduler.Resume(ctx)
				}
			} else if scheduler.State() == sched.Running {
				entry.Warn("leadership lost, suspending manager")
				scheduler.Suspend(ctx)
			}
			cancel()
		}
	}
}
