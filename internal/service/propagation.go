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

// DefaultMaxDepth bounds how many ancestor or descendant levels a single
// propagation or deletion walks before giving up.
const DefaultMaxDepth = 1000

// Propagator rolls subtask status changes up the task hierarchy.
//
// The rule applied at each level: a parent whose direct subtasks are all DONE
// becomes DONE; a DONE parent with at least one unfinished subtask reverts to
// TODO. The walk stops at the first level that needs no change.
type Propagator struct {
	maxDepth int
	logger   *slog.Logger
}

// NewPropagator creates a Propagator. A maxDepth of zero or less selects
// DefaultMaxDepth.
func NewPropagator(maxDepth int, logger *slog.Logger) *Propagator {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{
		maxDepth: maxDepth,
		logger:   logger.With(slog.String("component", "propagator")),
	}
}

// PropagateFromChild recomputes the statuses of childID's ancestors.
//
// s must be bound to the transaction that saved the child's status so that
// the rollup commits or rolls back with it. Every ancestor is re-read with
// GetForUpdate before it is changed. A missing child or parent is a no-op.
// No audit entries are written.
func (p *Propagator) PropagateFromChild(ctx context.Context, s store.Stores, childID uuid.UUID, now time.Time) error {
	log := logger.FromContextOrDefault(ctx, p.logger)

	child, err := s.Tasks.GetByID(ctx, childID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	visited := map[uuid.UUID]struct{}{child.ID: {}}
	next := child.ParentID
	for depth := 1; next != nil; depth++ {
		if depth > p.maxDepth {
			return fmt.Errorf("%w: more than %d ancestors above task %s", ErrHierarchyTooDeep, p.maxDepth, childID)
		}
		if _, seen := visited[*next]; seen {
			return fmt.Errorf("%w: task %s is its own ancestor", ErrHierarchyCycle, *next)
		}
		visited[*next] = struct{}{}

		parent, changed, err := p.rollup(ctx, s, *next, now)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		log.Debug("rolled up parent status",
			slog.String("task_id", parent.ID.String()),
			slog.String("status", string(parent.Status)),
			slog.Int("depth", depth))
		next = parent.ParentID
	}
	return nil
}

// rollup applies the status rule to one parent and reports whether it changed.
func (p *Propagator) rollup(ctx context.Context, s store.Stores, parentID uuid.UUID, now time.Time) (*domain.Task, bool, error) {
	parent, err := s.Tasks.GetForUpdate(ctx, parentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	children, err := s.Tasks.ListChildren(ctx, parentID)
	if err != nil {
		return nil, false, err
	}
	if len(children) == 0 {
		return parent, false, nil
	}

	want, ok := rolledUpStatus(parent.Status, children)
	if !ok {
		return parent, false, nil
	}

	parent.Status = want
	parent.UpdatedAt = now
	if err := s.Tasks.Update(ctx, parent); err != nil {
		return nil, false, err
	}
	return parent, true, nil
}

// rolledUpStatus returns the status the parent should move to, and false if
// it should stay as it is.
func rolledUpStatus(current domain.TaskStatus, children []*domain.Task) (domain.TaskStatus, bool) {
	allDone := true
	for _, c := range children {
		if !c.IsDone() {
			allDone = false
			break
		}
	}

	switch {
	case allDone && current != domain.TaskStatusDone:
		return domain.TaskStatusDone, true
	case !allDone && current == domain.TaskStatusDone:
		return domain.TaskStatusTodo, true
	}
	return current, false
}
