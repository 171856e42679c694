package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskhive/internal/config"
	"github.com/phrazzld/taskhive/internal/events"
	"github.com/phrazzld/taskhive/internal/scheduler"
	"github.com/phrazzld/taskhive/internal/service"
	"github.com/phrazzld/taskhive/internal/service/auth"
	"github.com/phrazzld/taskhive/internal/store"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	db *sql.DB
	tx store.Transactor

	jwtService          auth.JWTService
	taskService         service.TaskService
	notificationService service.NotificationService
	eventEmitter        *events.InMemoryEventEmitter

	// scheduler is nil when background jobs are disabled.
	scheduler *scheduler.Scheduler
	closers   []func() error
}

// newApplication creates a new application instance with all dependencies initialized.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	var err error
	app.tx, app.db, err = openStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if app.db != nil {
		app.closers = append(app.closers, app.db.Close)
	}

	if err := app.initServices(); err != nil {
		app.cleanup()
		return nil, err
	}

	if cfg.Scheduler.Enabled {
		if err := app.initScheduler(ctx); err != nil {
			app.cleanup()
			return nil, err
		}
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

func (app *application) initServices() error {
	var err error
	app.jwtService, err = auth.NewJWTService(app.config.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(app.logger)
	app.eventEmitter.RegisterHandler(service.NewAssignmentNotifier(app.tx, app.logger))

	app.taskService, err = service.NewTaskService(app.tx, app.eventEmitter, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create task service: %w", err)
	}

	app.notificationService, err = service.NewNotificationService(app.tx, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create notification service: %w", err)
	}
	return nil
}

// initScheduler registers the reminder scan and recurrence jobs. With a
// Redis URL the jobs are locked across processes; otherwise within this one.
func (app *application) initScheduler(ctx context.Context) error {
	cfg := app.config.Scheduler

	var locker scheduler.Locker = scheduler.NewLocalLocker()
	if app.config.Redis.URL != "" {
		client, err := scheduler.NewRedisClient(ctx, app.config.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		locker = scheduler.NewRedisLocker(client, app.logger)
		app.logger.Info("Using redis scheduler lock")
	}

	app.scheduler = scheduler.New(locker, time.Duration(cfg.LockTTLSeconds)*time.Second, app.logger)

	scanner, err := scheduler.NewDueScanner(app.tx, nil, scheduler.DueScanConfigFrom(cfg), app.logger)
	if err != nil {
		return fmt.Errorf("failed to create due scanner: %w", err)
	}
	if err := app.scheduler.Register(cfg.DueScanSpec, scanner); err != nil {
		return err
	}

	recurrence, err := scheduler.NewRecurrenceEngine(app.tx, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create recurrence engine: %w", err)
	}
	if err := app.scheduler.Register(cfg.RecurrenceSpec, recurrence); err != nil {
		return err
	}

	app.logger.Info("Scheduler configured",
		"due_scan_spec", cfg.DueScanSpec,
		"recurrence_spec", cfg.RecurrenceSpec)
	return nil
}

// Run starts the scheduler and the HTTP server and blocks until ctx is
// canceled or the server fails. Resources are released before it returns.
func (app *application) Run(ctx context.Context) error {
	if app.scheduler != nil {
		app.scheduler.Start()
	}

	err := app.startHTTPServer(ctx, app.setupRouter())
	app.shutdown()
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// shutdown stops the scheduler, waiting for a running job, then releases
// connections.
func (app *application) shutdown() {
	if app.scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout())
		if err := app.scheduler.Stop(ctx); err != nil {
			app.logger.Error("Scheduler did not stop in time", "error", err)
		}
		cancel()
	}
	app.cleanup()
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error("Error closing resource", "error", err)
		}
	}
	app.closers = nil
	app.logger.Info("Application shutdown completed")
}

func (app *application) shutdownTimeout() time.Duration {
	if app.config.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
}
