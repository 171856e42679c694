package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// Deleter removes a task together with its whole subtree.
type Deleter struct {
	audit    *AuditWriter
	maxDepth int
	logger   *slog.Logger
}

// NewDeleter creates a Deleter. A maxDepth of zero or less selects DefaultMaxDepth.
func NewDeleter(audit *AuditWriter, maxDepth int, logger *slog.Logger) *Deleter {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	if audit == nil {
		audit = NewAuditWriter(logger)
	}
	return &Deleter{
		audit:    audit,
		maxDepth: maxDepth,
		logger:   logger.With(slog.String("component", "deleter")),
	}
}

type deleteFrame struct {
	task     *domain.Task
	depth    int
	expanded bool
}

// DeleteSubtree deletes taskID and every descendant.
//
// Only the task's creator may delete it; anyone else gets ErrNotCreator and
// nothing is written. Each descendant is announced with a
// `Deleted subtask: "<title>"` HISTORY entry on taskID, written before the
// descendant's own children are visited, and is removed after them.
// s must be transaction-bound: the caller's rollback undoes every removal
// and audit entry.
func (d *Deleter) DeleteSubtree(ctx context.Context, s store.Stores, taskID, requesterID uuid.UUID, now time.Time) error {
	log := logger.FromContextOrDefault(ctx, d.logger)

	root, err := s.Tasks.GetForUpdate(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	if root.CreatorID != requesterID {
		log.Warn("non-creator attempted task deletion",
			slog.String("task_id", taskID.String()),
			slog.String("requester_id", requesterID.String()))
		return ErrNotCreator
	}

	visited := map[uuid.UUID]struct{}{root.ID: {}}
	stack, err := d.childFrames(ctx, s, root.ID, 1, visited)
	if err != nil {
		return err
	}

	removed := 0
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.expanded {
			if err := s.Tasks.Delete(ctx, top.task.ID); err != nil {
				return err
			}
			removed++
			stack = stack[:len(stack)-1]
			continue
		}

		top.expanded = true
		current := *top
		if err := d.audit.History(ctx, s.Logs, root.ID, requesterID, subtaskDeletedMessage(current.task.Title), now); err != nil {
			return err
		}
		children, err := d.childFrames(ctx, s, current.task.ID, current.depth+1, visited)
		if err != nil {
			return err
		}
		if len(children) > 0 && current.depth >= d.maxDepth {
			return fmt.Errorf("%w: subtree of task %s is deeper than %d", ErrHierarchyTooDeep, root.ID, d.maxDepth)
		}
		stack = append(stack, children...)
	}

	if err := s.Tasks.Delete(ctx, root.ID); err != nil {
		return err
	}

	log.Info("task subtree deleted",
		slog.String("task_id", root.ID.String()),
		slog.Int("subtasks_removed", removed))
	return nil
}

// childFrames returns frames for the direct children of parentID, reversed so
// that popping the stack visits them in creation order.
func (d *Deleter) childFrames(
	ctx context.Context,
	s store.Stores,
	parentID uuid.UUID,
	depth int,
	visited map[uuid.UUID]struct{},
) ([]deleteFrame, error) {
	children, err := s.Tasks.ListChildren(ctx, parentID)
	if err != nil {
		return nil, err
	}
	frames := make([]deleteFrame, 0, len(children))
	for i := len(children) - 1; i >= 0; i-- {
		child := children[i]
		if _, seen := visited[child.ID]; seen {
			return nil, fmt.Errorf("%w: task %s reached twice below %s", ErrHierarchyCycle, child.ID, parentID)
		}
		visited[child.ID] = struct{}{}
		frames = append(frames, deleteFrame{task: child, depth: depth})
	}
	return frames, nil
}
