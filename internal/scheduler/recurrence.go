package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/service"
	"github.com/phrazzld/taskhive/internal/store"
)

// RecurrenceResult summarizes one recurrence run.
type RecurrenceResult struct {
	Candidates int
	Created    int
	Failed     int
}

// RecurrenceEngine spawns a fresh TODO instance of every completed
// recurring task. The completed source is left as it is, so a source that
// stays DONE spawns again on the next run.
type RecurrenceEngine struct {
	tx     store.Transactor
	audit  *service.AuditWriter
	now    func() time.Time
	logger *slog.Logger
}

// NewRecurrenceEngine creates a RecurrenceEngine.
func NewRecurrenceEngine(tx store.Transactor, logger *slog.Logger, opts ...Option) (*RecurrenceEngine, error) {
	if tx == nil {
		return nil, domain.NewValidationError("tx", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &RecurrenceEngine{
		tx:     tx,
		audit:  service.NewAuditWriter(logger),
		now:    o.now,
		logger: logger.With(slog.String("component", "recurrence_engine")),
	}, nil
}

// Name implements Job.
func (e *RecurrenceEngine) Name() string { return "recurrence" }

// Run implements Job.
func (e *RecurrenceEngine) Run(ctx context.Context) error {
	res, err := e.Spawn(ctx)
	log := logger.FromContextOrDefault(ctx, e.logger)
	if err != nil {
		log.Error("recurrence run failed", "error", err)
		return err
	}
	log.Info("recurrence run completed",
		"candidates", res.Candidates,
		"created", res.Created,
		"failed", res.Failed)
	return nil
}

// Spawn creates one new instance per completed recurring task.
func (e *RecurrenceEngine) Spawn(ctx context.Context) (RecurrenceResult, error) {
	var res RecurrenceResult
	now := e.now()

	sources, err := e.tx.Stores().Tasks.FindRecurringDone(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to load recurring tasks: %w", err)
	}
	res.Candidates = len(sources)

	log := logger.FromContextOrDefault(ctx, e.logger)
	for _, src := range sources {
		instance, err := e.spawnOne(ctx, src.ID, now)
		if err != nil {
			res.Failed++
			log.Error("failed to create recurring instance",
				"source_task_id", src.ID,
				"error", err)
			continue
		}
		if instance == nil {
			continue
		}
		res.Created++
		log.Debug("created recurring instance",
			"source_task_id", src.ID,
			"task_id", instance.ID,
			"due_date", instance.DueDate)
	}
	return res, nil
}

func (e *RecurrenceEngine) spawnOne(ctx context.Context, sourceID uuid.UUID, now time.Time) (*domain.Task, error) {
	var instance *domain.Task
	err := e.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		instance = nil

		src, err := st.Tasks.GetByID(ctx, sourceID)
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !src.IsRecurring || !src.IsDone() || src.RecurrenceRule == "" {
			return nil
		}

		due := domain.ParseRecurrenceRule(src.RecurrenceRule).NextDue(now)
		next := src.CloneForRecurrence(due, now)
		if err := st.Tasks.Create(ctx, next); err != nil {
			return err
		}
		if err := e.audit.History(ctx, st.Logs, next.ID, next.CreatorID,
			service.RecurringInstanceMessage(src.ID), now); err != nil {
			return err
		}
		instance = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}
