package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/config"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// DueScanConfig holds the reminder window and throttling gaps.
type DueScanConfig struct {
	// Window is how far ahead a due date counts as "due soon".
	Window time.Duration
	// DueSoonGap is the minimum time between two due-soon reminders for a task.
	DueSoonGap time.Duration
	// OverdueGap is the minimum time between two overdue reminders for a task.
	OverdueGap time.Duration
}

// DefaultDueScanConfig returns the 24h window with 12h/24h gaps.
func DefaultDueScanConfig() DueScanConfig {
	return DueScanConfig{
		Window:     24 * time.Hour,
		DueSoonGap: 12 * time.Hour,
		OverdueGap: 24 * time.Hour,
	}
}

// DueScanConfigFrom converts the scheduler configuration section.
func DueScanConfigFrom(cfg config.SchedulerConfig) DueScanConfig {
	return DueScanConfig{
		Window:     time.Duration(cfg.DueSoonWindowHours) * time.Hour,
		DueSoonGap: time.Duration(cfg.DueSoonGapHours) * time.Hour,
		OverdueGap: time.Duration(cfg.OverdueGapHours) * time.Hour,
	}
}

// ScanResult summarizes one scan.
type ScanResult struct {
	DueSoonTasks  int
	OverdueTasks  int
	TasksNotified int
	Delivered     int
	// DispatchFailures counts individual undelivered notifications.
	DispatchFailures int
	// TaskFailures counts tasks whose unit of work was rolled back.
	TaskFailures int
}

// reminder describes one of the two reminder kinds.
type reminder struct {
	kind    domain.NotificationType
	gap     time.Duration
	due     func(task *domain.Task, now time.Time) bool
	message func(task *domain.Task, now time.Time) string
}

// DueScanner sends due-soon and overdue reminders to everyone involved in
// an open task, throttled per task by LastNotificationSent.
type DueScanner struct {
	tx         store.Transactor
	dispatcher Dispatcher
	cfg        DueScanConfig
	now        func() time.Time
	logger     *slog.Logger
}

// NewDueScanner creates a DueScanner. A nil dispatcher stores notifications
// in the inbox. Zero durations in cfg take their defaults.
func NewDueScanner(
	tx store.Transactor,
	dispatcher Dispatcher,
	cfg DueScanConfig,
	logger *slog.Logger,
	opts ...Option,
) (*DueScanner, error) {
	if tx == nil {
		return nil, domain.NewValidationError("tx", "cannot be nil", domain.ErrValidation)
	}
	if dispatcher == nil {
		dispatcher = StoreDispatcher{}
	}
	def := DefaultDueScanConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.DueSoonGap <= 0 {
		cfg.DueSoonGap = def.DueSoonGap
	}
	if cfg.OverdueGap <= 0 {
		cfg.OverdueGap = def.OverdueGap
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &DueScanner{
		tx:         tx,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        o.now,
		logger:     logger.With(slog.String("component", "due_scanner")),
	}, nil
}

// Name implements Job.
func (s *DueScanner) Name() string { return "due_scan" }

// Run implements Job. It performs one scan and logs its summary.
func (s *DueScanner) Run(ctx context.Context) error {
	res, err := s.Scan(ctx)
	log := logger.FromContextOrDefault(ctx, s.logger)
	if err != nil {
		log.Error("due scan failed", "error", err)
		return err
	}
	log.Info("due scan completed",
		"due_soon_tasks", res.DueSoonTasks,
		"overdue_tasks", res.OverdueTasks,
		"tasks_notified", res.TasksNotified,
		"delivered", res.Delivered,
		"dispatch_failures", res.DispatchFailures,
		"task_failures", res.TaskFailures)
	return nil
}

// Scan runs the due-soon pass followed by the overdue pass. Only failures
// to load the candidate lists are returned; per-task failures are counted.
func (s *DueScanner) Scan(ctx context.Context) (ScanResult, error) {
	var res ScanResult
	now := s.now()
	tasks := s.tx.Stores().Tasks

	dueSoon, err := tasks.FindOpenDueBetween(ctx, now, now.Add(s.cfg.Window))
	if err != nil {
		return res, fmt.Errorf("failed to load tasks due soon: %w", err)
	}
	res.DueSoonTasks = len(dueSoon)
	s.process(ctx, dueSoon, s.dueSoonReminder(), now, &res)

	overdue, err := tasks.FindOpenOverdue(ctx, now)
	if err != nil {
		return res, fmt.Errorf("failed to load overdue tasks: %w", err)
	}
	res.OverdueTasks = len(overdue)
	s.process(ctx, overdue, s.overdueReminder(), now, &res)

	return res, nil
}

func (s *DueScanner) dueSoonReminder() reminder {
	return reminder{
		kind: domain.NotificationDueSoon,
		gap:  s.cfg.DueSoonGap,
		due: func(t *domain.Task, now time.Time) bool {
			return t.DueDate != nil && t.DueDate.After(now) && !t.DueDate.After(now.Add(s.cfg.Window))
		},
		message: func(t *domain.Task, now time.Time) string {
			return domain.DueSoonMessage(t.Title, *t.DueDate, now)
		},
	}
}

func (s *DueScanner) overdueReminder() reminder {
	return reminder{
		kind: domain.NotificationOverdue,
		gap:  s.cfg.OverdueGap,
		due: func(t *domain.Task, now time.Time) bool {
			return t.DueDate != nil && t.DueDate.Before(now)
		},
		message: func(t *domain.Task, _ time.Time) string {
			return domain.OverdueMessage(t.Title)
		},
	}
}

func (s *DueScanner) process(ctx context.Context, candidates []*domain.Task, r reminder, now time.Time, res *ScanResult) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	for _, candidate := range candidates {
		out, err := s.remind(ctx, candidate.ID, r, now)
		if err != nil {
			res.TaskFailures++
			log.Error("failed to process task reminder",
				"task_id", candidate.ID,
				"notification_type", r.kind,
				"error", err)
			continue
		}
		if out.sent {
			res.TasksNotified++
		}
		res.Delivered += out.delivered
		res.DispatchFailures += out.failed
	}
}

type remindOutcome struct {
	sent      bool
	delivered int
	failed    int
}

// remind re-reads the task under lock, checks the throttling gate and, if
// it is open, dispatches the reminder to every recipient and advances the
// gate in the same transaction.
func (s *DueScanner) remind(ctx context.Context, taskID uuid.UUID, r reminder, now time.Time) (remindOutcome, error) {
	var out remindOutcome
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		out = remindOutcome{}

		task, err := st.Tasks.GetForUpdate(ctx, taskID)
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if task.IsDone() || !r.due(task, now) {
			return nil
		}
		if task.HoursSinceLastNotification(now) <= r.gap.Hours() {
			return nil
		}

		message := r.message(task, now)
		for _, userID := range task.Recipients() {
			if err := s.deliver(ctx, st, task, userID, r.kind, message, now); err != nil {
				out.failed++
				logger.FromContextOrDefault(ctx, s.logger).Warn("notification dispatch failed",
					"task_id", taskID,
					"error", err)
				continue
			}
			out.delivered++
		}

		sent := now
		task.LastNotificationSent = &sent
		task.UpdatedAt = now
		if err := st.Tasks.Update(ctx, task); err != nil {
			return err
		}
		out.sent = true
		return nil
	})
	if err != nil {
		return remindOutcome{}, err
	}
	return out, nil
}

func (s *DueScanner) deliver(
	ctx context.Context,
	st store.Stores,
	task *domain.Task,
	userID uuid.UUID,
	kind domain.NotificationType,
	message string,
	now time.Time,
) error {
	taskID := task.ID
	n, err := domain.NewNotification(kind, userID, &taskID, message, now)
	if err == nil {
		err = s.dispatcher.Dispatch(ctx, st, n)
	}
	if err != nil {
		return &DispatchError{TaskID: task.ID, UserID: userID, Type: kind, Err: err}
	}
	return nil
}
