package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTask_RollsUpThroughAncestors(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	root := f.task(alice, "release", nil)
	mid := f.task(alice, "backend", root)
	leaf1 := f.task(alice, "api", mid)
	leaf2 := f.task(alice, "db", mid)

	require.NoError(t, f.setStatus(leaf1, alice, domain.TaskStatusDone))
	assert.Equal(t, domain.TaskStatusTodo, f.get(mid.ID).Status)
	assert.Equal(t, domain.TaskStatusTodo, f.get(root.ID).Status)

	require.NoError(t, f.setStatus(leaf2, alice, domain.TaskStatusDone))
	assert.Equal(t, domain.TaskStatusDone, f.get(mid.ID).Status)
	assert.Equal(t, domain.TaskStatusDone, f.get(root.ID).Status)

	require.NoError(t, f.setStatus(leaf1, alice, domain.TaskStatusTodo))
	assert.Equal(t, domain.TaskStatusTodo, f.get(mid.ID).Status)
	assert.Equal(t, domain.TaskStatusTodo, f.get(root.ID).Status)

	// Rollup writes no audit entries on ancestors.
	for _, msg := range f.history(mid.ID) {
		assert.NotContains(t, msg, "Changed status")
	}
}

func TestUpdateTask_PendingParentOnlyMovesWhenAllDone(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	parent := f.task(alice, "parent", nil)
	a := f.task(alice, "a", parent)
	b := f.task(alice, "b", parent)
	require.NoError(t, f.setStatus(parent, alice, domain.TaskStatusPending))

	require.NoError(t, f.setStatus(a, alice, domain.TaskStatusDone))
	assert.Equal(t, domain.TaskStatusPending, f.get(parent.ID).Status)

	require.NoError(t, f.setStatus(b, alice, domain.TaskStatusPending))
	assert.Equal(t, domain.TaskStatusPending, f.get(parent.ID).Status)

	require.NoError(t, f.setStatus(b, alice, domain.TaskStatusDone))
	assert.Equal(t, domain.TaskStatusDone, f.get(parent.ID).Status)
}

func TestUpdateTask_NonStatusChangeDoesNotRollUp(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	parent := f.task(alice, "parent", nil)
	child := f.task(alice, "child", parent)

	// Make the parent inconsistent on purpose, then touch only the title.
	p := f.get(parent.ID)
	p.Status = domain.TaskStatusDone
	require.NoError(t, f.tx.Stores().Tasks.Update(context.Background(), p))

	_, err := f.svc.UpdateTask(context.Background(), child.ID, alice, UpdateTaskInput{Title: strPtr("renamed")})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, f.get(parent.ID).Status)
}

func TestPropagateFromChild_IdempotentOnConsistentTree(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	root := f.task(alice, "root", nil)
	child := f.task(alice, "child", root)
	require.NoError(t, f.setStatus(child, alice, domain.TaskStatusDone))
	require.Equal(t, domain.TaskStatusDone, f.get(root.ID).Status)

	p := NewPropagator(0, nil)
	before := f.tx.updateCount()
	err := f.tx.WithinTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		return p.PropagateFromChild(ctx, s, child.ID, f.now)
	})
	require.NoError(t, err)
	assert.Equal(t, before, f.tx.updateCount())
}

func TestPropagateFromChild_MissingChildIsNoop(t *testing.T) {
	f := newFixture(t)
	p := NewPropagator(0, nil)
	err := f.tx.WithinTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		return p.PropagateFromChild(ctx, s, uuid.New(), f.now)
	})
	assert.NoError(t, err)
}

func TestUpdateTask_FailedRollupRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	root := f.task(alice, "root", nil)
	mid := f.task(alice, "mid", root)
	leaf := f.task(alice, "leaf", mid)

	f.tx.failUpdateOf = root.ID
	err := f.setStatus(leaf, alice, domain.TaskStatusDone)
	require.ErrorIs(t, err, errInjected)

	var svcErr *TaskServiceError
	assert.ErrorAs(t, err, &svcErr)

	assert.Equal(t, domain.TaskStatusTodo, f.get(leaf.ID).Status)
	assert.Equal(t, domain.TaskStatusTodo, f.get(mid.ID).Status)
	assert.Equal(t, domain.TaskStatusTodo, f.get(root.ID).Status)
	assert.NotContains(t, f.history(leaf.ID), `Changed status from "TODO" to "DONE"`)
}

func TestPropagateFromChild_DepthLimit(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	a := f.task(alice, "a", nil)
	b := f.task(alice, "b", a)
	c := f.task(alice, "c", b)
	leaf := f.task(alice, "leaf", c)

	p := NewPropagator(2, nil)
	err := f.tx.WithinTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		l, err := s.Tasks.GetByID(ctx, leaf.ID)
		if err != nil {
			return err
		}
		l.Status = domain.TaskStatusDone
		if err := s.Tasks.Update(ctx, l); err != nil {
			return err
		}
		return p.PropagateFromChild(ctx, s, leaf.ID, f.now)
	})
	require.ErrorIs(t, err, ErrHierarchyTooDeep)
	assert.Equal(t, domain.TaskStatusTodo, f.get(leaf.ID).Status)
	assert.Equal(t, domain.TaskStatusTodo, f.get(c.ID).Status)
}

// cyclicTasks serves a hand-built hierarchy that the real stores refuse to hold.
type cyclicTasks struct {
	store.TaskStore
	tasks map[uuid.UUID]*domain.Task
}

func (c *cyclicTasks) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	t, ok := c.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t, nil
}

func (c *cyclicTasks) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return c.GetByID(ctx, id)
}

func (c *cyclicTasks) ListChildren(_ context.Context, parentID uuid.UUID) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range c.tasks {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (c *cyclicTasks) Update(_ context.Context, task *domain.Task) error {
	c.tasks[task.ID] = task
	return nil
}

func (c *cyclicTasks) Delete(_ context.Context, id uuid.UUID) error {
	delete(c.tasks, id)
	return nil
}

// newCycle builds a <-> b with leaf under a. The unfinished leaf makes a and
// then b revert to TODO, walking back into a.
func newCycle() (*cyclicTasks, *domain.Task, *domain.Task, *domain.Task) {
	creator := uuid.New()
	a := &domain.Task{ID: uuid.New(), Title: "a", Status: domain.TaskStatusDone, CreatorID: creator}
	b := &domain.Task{ID: uuid.New(), Title: "b", Status: domain.TaskStatusDone, CreatorID: creator}
	leaf := &domain.Task{ID: uuid.New(), Title: "leaf", Status: domain.TaskStatusTodo, CreatorID: creator}
	a.ParentID = &b.ID
	b.ParentID = &a.ID
	leaf.ParentID = &a.ID
	return &cyclicTasks{tasks: map[uuid.UUID]*domain.Task{a.ID: a, b.ID: b, leaf.ID: leaf}}, a, b, leaf
}

func TestPropagateFromChild_DetectsCycle(t *testing.T) {
	tasks, _, _, leaf := newCycle()
	p := NewPropagator(0, nil)

	err := p.PropagateFromChild(context.Background(), store.Stores{Tasks: tasks}, leaf.ID, baseTime)
	assert.ErrorIs(t, err, ErrHierarchyCycle)
}

func TestRolledUpStatus(t *testing.T) {
	done := &domain.Task{Status: domain.TaskStatusDone}
	todo := &domain.Task{Status: domain.TaskStatusTodo}

	tests := []struct {
		name     string
		current  domain.TaskStatus
		children []*domain.Task
		want     domain.TaskStatus
		changed  bool
	}{
		{"all done completes", domain.TaskStatusTodo, []*domain.Task{done, done}, domain.TaskStatusDone, true},
		{"all done pending completes", domain.TaskStatusPending, []*domain.Task{done}, domain.TaskStatusDone, true},
		{"already done", domain.TaskStatusDone, []*domain.Task{done}, domain.TaskStatusDone, false},
		{"done parent reverts", domain.TaskStatusDone, []*domain.Task{done, todo}, domain.TaskStatusTodo, true},
		{"pending stays", domain.TaskStatusPending, []*domain.Task{todo}, domain.TaskStatusPending, false},
		{"todo stays", domain.TaskStatusTodo, []*domain.Task{todo, done}, domain.TaskStatusTodo, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := rolledUpStatus(tc.current, tc.children)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.changed, changed)
		})
	}
}
