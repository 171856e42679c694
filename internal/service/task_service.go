package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/events"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// CreateTaskInput carries the fields of a new task. Member lists may repeat
// IDs; duplicates are dropped.
type CreateTaskInput struct {
	Title          string
	Description    string
	ParentID       *uuid.UUID
	AssigneeIDs    []uuid.UUID
	FollowerIDs    []uuid.UUID
	TeamIDs        []uuid.UUID
	DueDate        *time.Time
	IsRecurring    bool
	RecurrenceRule string
	// IsPrivate defaults to true when nil.
	IsPrivate *bool
}

// UpdateTaskInput carries a partial update. Nil fields are left unchanged.
type UpdateTaskInput struct {
	Title       *string
	Status      *domain.TaskStatus
	Description *string
	// AssigneeID adds one assignee to the task.
	AssigneeID *uuid.UUID
}

// TaskService is the entry point for every externally triggered task operation.
type TaskService interface {
	// CreateTask creates a task owned by creatorID and records it in the
	// history of the task and, for subtasks, of the parent.
	CreateTask(ctx context.Context, creatorID uuid.UUID, in CreateTaskInput) (*domain.Task, error)

	// GetTask retrieves a task by its ID.
	GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)

	// ListTasks returns the tasks visible to q.ViewerID.
	ListTasks(ctx context.Context, q store.TaskQuery) ([]*domain.Task, error)

	// UpdateTask applies a partial update, logs each changed field and rolls a
	// status change up to the task's ancestors, all in one transaction.
	UpdateTask(ctx context.Context, taskID, editorID uuid.UUID, in UpdateTaskInput) (*domain.Task, error)

	// DeleteTask removes the task and its subtree. Only the creator may delete.
	DeleteTask(ctx context.Context, taskID, requesterID uuid.UUID) error

	// Membership operations are idempotent and return a status message.
	AddFollower(ctx context.Context, taskID, userID, actorID uuid.UUID) (string, error)
	RemoveFollower(ctx context.Context, taskID, userID, actorID uuid.UUID) (string, error)
	AddAssignee(ctx context.Context, taskID, userID, actorID uuid.UUID, addToFollowers bool) (string, error)
	RemoveAssignee(ctx context.Context, taskID, userID, actorID uuid.UUID) (string, error)
	AddTeam(ctx context.Context, taskID, teamID, actorID uuid.UUID) (string, error)
	RemoveTeam(ctx context.Context, taskID, teamID, actorID uuid.UUID) (string, error)

	// AddComment appends a COMMENT entry to the task's audit log.
	AddComment(ctx context.Context, taskID, authorID uuid.UUID, content string) (*domain.AuditLogEntry, error)

	// GetHistory returns the task's audit log, newest first.
	GetHistory(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditLogEntry, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tx         store.Transactor
	emitter    events.EventEmitter
	audit      *AuditWriter
	propagator *Propagator
	deleter    *Deleter
	now        Clock
	logger     *slog.Logger
}

var _ TaskService = (*taskServiceImpl)(nil)

// NewTaskService creates a new TaskService.
// It returns an error if the transactor is nil. The emitter is optional;
// without one no task events are published.
func NewTaskService(
	tx store.Transactor,
	emitter events.EventEmitter,
	logger *slog.Logger,
	opts ...Option,
) (TaskService, error) {
	if tx == nil {
		return nil, domain.NewValidationError("tx", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	audit := NewAuditWriter(logger)

	return &taskServiceImpl{
		tx:         tx,
		emitter:    emitter,
		audit:      audit,
		propagator: NewPropagator(o.maxDepth, logger),
		deleter:    NewDeleter(audit, o.maxDepth, logger),
		now:        o.clock,
		logger:     logger.With(slog.String("component", "task_service")),
	}, nil
}

// CreateTask implements TaskService.CreateTask
func (s *taskServiceImpl) CreateTask(ctx context.Context, creatorID uuid.UUID, in CreateTaskInput) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	task, err := domain.NewTask(creatorID, in.Title, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	task.Description = in.Description
	task.ParentID = in.ParentID
	task.DueDate = in.DueDate
	task.IsRecurring = in.IsRecurring
	task.RecurrenceRule = strings.TrimSpace(in.RecurrenceRule)
	if in.IsPrivate != nil {
		task.IsPrivate = *in.IsPrivate
	}
	for _, id := range in.AssigneeIDs {
		task.Add(domain.RelationAssignee, id)
	}
	for _, id := range in.FollowerIDs {
		task.Add(domain.RelationFollower, id)
	}
	for _, id := range in.TeamIDs {
		task.Add(domain.RelationTeam, id)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if task.ParentID != nil {
			if _, err := st.Tasks.GetByID(ctx, *task.ParentID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrParentNotFound
				}
				return err
			}
		}
		if err := s.checkReferences(ctx, st, task); err != nil {
			return err
		}

		if err := st.Tasks.Create(ctx, task); err != nil {
			return mapStoreError(err)
		}
		if err := s.audit.History(ctx, st.Logs, task.ID, creatorID, "Created task", now); err != nil {
			return err
		}
		if task.ParentID != nil {
			return s.audit.History(ctx, st.Logs, *task.ParentID, creatorID, subtaskCreatedMessage(task.Title), now)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("creator_id", creatorID.String()))
		return nil, wrapErr("create_task", "failed to create task", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.Bool("subtask", task.HasParent()))
	return task, nil
}

// checkReferences verifies that every referenced user and team exists.
func (s *taskServiceImpl) checkReferences(ctx context.Context, st store.Stores, task *domain.Task) error {
	users := append(append([]uuid.UUID{}, task.AssigneeIDs...), task.FollowerIDs...)
	for _, id := range users {
		if _, err := st.Users.GetByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: user %s does not exist", ErrInvalidInput, id)
			}
			return err
		}
	}
	for _, id := range task.TeamIDs {
		if _, err := st.Teams.GetByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: team %s does not exist", ErrInvalidInput, id)
			}
			return err
		}
	}
	return nil
}

// GetTask implements TaskService.GetTask
func (s *taskServiceImpl) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.tx.Stores().Tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to retrieve task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}
	return task, nil
}

// ListTasks implements TaskService.ListTasks
func (s *taskServiceImpl) ListTasks(ctx context.Context, q store.TaskQuery) ([]*domain.Task, error) {
	if q.ViewerID == uuid.Nil {
		return nil, fmt.Errorf("%w: viewer is required", ErrInvalidInput)
	}
	tasks, err := s.tx.Stores().Tasks.List(ctx, q.Normalize())
	if err != nil {
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	return tasks, nil
}

// UpdateTask implements TaskService.UpdateTask
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	taskID, editorID uuid.UUID,
	in UpdateTaskInput,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	now := s.now()

	var (
		updated *domain.Task
		pending []*events.TaskEvent
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		task, err := st.Tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTaskNotFound
			}
			return err
		}

		var diffs []string
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrEmptyTaskTitle)
			}
			if title != task.Title {
				diffs = append(diffs, titleChangedMessage(task.Title, title))
				task.Title = title
			}
		}
		if in.Description != nil && *in.Description != task.Description {
			diffs = append(diffs, descriptionChangedMessage(task.Description, *in.Description))
			task.Description = *in.Description
		}
		statusChanged := false
		if in.Status != nil {
			if !in.Status.IsValid() {
				return fmt.Errorf("%w: %v", ErrInvalidInput, domain.ErrInvalidStatus)
			}
			if *in.Status != task.Status {
				diffs = append(diffs, statusChangedMessage(task.Status, *in.Status))
				task.Status = *in.Status
				statusChanged = true
			}
		}

		for _, msg := range diffs {
			if err := s.audit.History(ctx, st.Logs, task.ID, editorID, msg, now); err != nil {
				return err
			}
		}
		if len(diffs) > 0 {
			task.UpdatedAt = now
			if err := st.Tasks.Update(ctx, task); err != nil {
				return mapStoreError(err)
			}
		}

		if in.AssigneeID != nil && !task.HasAssignee(*in.AssigneeID) {
			ev, err := s.addMember(ctx, st, task, domain.RelationAssignee, *in.AssigneeID, editorID, false, now)
			if err != nil {
				return err
			}
			pending = append(pending, ev)
		}

		if statusChanged && task.HasParent() {
			if err := s.propagator.PropagateFromChild(ctx, st, task.ID, now); err != nil {
				return err
			}
		}

		updated, err = st.Tasks.GetByID(ctx, task.ID)
		return err
	})
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, wrapErr("update_task", "failed to update task", err)
	}

	s.emit(ctx, pending)
	log.Debug("task updated", slog.String("task_id", taskID.String()))
	return updated, nil
}

// DeleteTask implements TaskService.DeleteTask
func (s *taskServiceImpl) DeleteTask(ctx context.Context, taskID, requesterID uuid.UUID) error {
	now := s.now()
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		return s.deleter.DeleteSubtree(ctx, st, taskID, requesterID, now)
	})
	if err != nil {
		if !isExpected(err) {
			logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete task",
				slog.String("error", err.Error()),
				slog.String("task_id", taskID.String()))
		}
		return wrapErr("delete_task", "failed to delete task", err)
	}
	return nil
}

// AddComment implements TaskService.AddComment
func (s *taskServiceImpl) AddComment(
	ctx context.Context,
	taskID, authorID uuid.UUID,
	content string,
) (*domain.AuditLogEntry, error) {
	now := s.now()
	var entry *domain.AuditLogEntry
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if _, err := st.Tasks.GetByID(ctx, taskID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTaskNotFound
			}
			return err
		}
		var err error
		entry, err = s.audit.Comment(ctx, st.Logs, taskID, authorID, content, now)
		if err != nil {
			return mapStoreError(err)
		}
		entry.AuthorName = s.userName(ctx, st, authorID)
		return nil
	})
	if err != nil {
		return nil, wrapErr("add_comment", "failed to add comment", err)
	}
	return entry, nil
}

// GetHistory implements TaskService.GetHistory
func (s *taskServiceImpl) GetHistory(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	st := s.tx.Stores()
	if _, err := st.Tasks.GetByID(ctx, taskID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, NewTaskServiceError("get_history", "failed to retrieve task", err)
	}
	entries, err := st.Logs.ListByTask(ctx, taskID)
	if err != nil {
		return nil, NewTaskServiceError("get_history", "failed to retrieve history", err)
	}
	if entries == nil {
		entries = []*domain.AuditLogEntry{}
	}
	return entries, nil
}

// emit publishes committed changes. Handler failures are logged only; the
// change itself has already been committed.
func (s *taskServiceImpl) emit(ctx context.Context, pending []*events.TaskEvent) {
	if s.emitter == nil {
		return
	}
	for _, ev := range pending {
		if err := s.emitter.EmitEvent(ctx, ev); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Warn("task event handler failed",
				slog.String("error", err.Error()),
				slog.String("event_type", ev.Type),
				slog.String("task_id", ev.TaskID.String()))
		}
	}
}

// mapStoreError translates store validation failures into ErrInvalidInput.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, store.ErrInvalidEntity):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}
