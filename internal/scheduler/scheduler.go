package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/robfig/cron/v3"
)

// Job is a unit of periodic work.
type Job interface {
	// Name identifies the job in logs and lock keys.
	Name() string
	// Run performs one complete pass.
	Run(ctx context.Context) error
}

// lockPrefix namespaces job lock keys.
const lockPrefix = "taskhive:scheduler:"

// Scheduler triggers registered jobs on their cron specs. A job never runs
// concurrently with itself: overlapping triggers are skipped in-process and
// the Locker guards against other processes.
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// New creates a Scheduler. Specs are interpreted in UTC. A nil locker is
// replaced by a LocalLocker; lockTTL should exceed the longest expected run.
func New(locker Locker, lockTTL time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}
	log := logger.With(slog.String("component", "scheduler"))
	cl := cronLogger{logger: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		lockTTL: lockTTL,
		logger:  log,
	}
}

// Register schedules job on spec.
func (s *Scheduler) Register(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		_ = s.RunJob(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s with spec %q: %w", job.Name(), spec, err)
	}
	s.logger.Info("job registered", "job", job.Name(), "spec", spec)
	return nil
}

// Start begins triggering jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new triggers and waits for running jobs to finish or ctx
// to expire, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
		return ctx.Err()
	}
}

// RunJob runs job once under its lock. A run skipped because another holder
// owns the lock is not an error.
func (s *Scheduler) RunJob(ctx context.Context, job Job) error {
	log := s.logger.With(slog.String("job", job.Name()))

	release, ok, err := s.locker.TryLock(ctx, lockPrefix+job.Name(), s.lockTTL)
	if err != nil {
		log.Error("failed to acquire job lock", "error", err)
		return err
	}
	if !ok {
		log.Info("job skipped, previous run still holds the lock")
		return nil
	}
	defer release()

	start := time.Now()
	log.Debug("job started")
	err = job.Run(logger.WithLogger(ctx, log))
	if err != nil {
		log.Error("job failed", "error", err, "duration", time.Since(start))
		return err
	}
	log.Debug("job finished", "duration", time.Since(start))
	return nil
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
