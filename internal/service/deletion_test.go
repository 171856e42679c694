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

func TestDeleteTask_RemovesWholeSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user("alice")
	bob := f.user("bob")

	root := f.task(alice, "release", nil)
	a := f.task(alice, "backend", root)
	a1 := f.task(alice, "api", a)
	a2 := f.task(alice, "db", a)
	b := f.task(alice, "docs", root)
	other := f.task(alice, "unrelated", nil)

	st := f.tx.Stores()
	aTaskID := a1.ID
	n, err := domain.NewNotification(domain.NotificationOverdue, bob, &aTaskID, domain.OverdueMessage(a1.Title), f.now)
	require.NoError(t, err)
	require.NoError(t, st.Notifications.Create(ctx, n))

	require.NoError(t, f.svc.DeleteTask(ctx, root.ID, alice))

	for _, id := range []uuid.UUID{root.ID, a.ID, a1.ID, a2.ID, b.ID} {
		_, err := st.Tasks.GetByID(ctx, id)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		_, err = f.svc.GetHistory(ctx, id)
		assert.ErrorIs(t, err, ErrTaskNotFound)

		logs, err := st.Logs.ListByTask(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, logs)
	}
	inbox, err := f.inbox.ListNotifications(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, inbox)

	_, err = st.Tasks.GetByID(ctx, other.ID)
	assert.NoError(t, err)
}

func TestDeleteTask_LogsEverySubtaskOnTopLevelTask(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	root := f.task(alice, "release", nil)
	a := f.task(alice, "backend", root)
	f.task(alice, "api", a)
	f.task(alice, "db", a)
	f.task(alice, "docs", root)

	start := len(f.tx.entries())
	require.NoError(t, f.svc.DeleteTask(context.Background(), root.ID, alice))

	var got []string
	for _, e := range f.tx.entries()[start:] {
		assert.Equal(t, root.ID, e.TaskID, "entry %q logged on an intermediate task", e.Content)
		assert.Equal(t, domain.LogTypeHistory, e.Type)
		assert.Equal(t, alice, e.UserID)
		got = append(got, e.Content)
	}
	assert.Equal(t, []string{
		`Deleted subtask: "backend"`,
		`Deleted subtask: "api"`,
		`Deleted subtask: "db"`,
		`Deleted subtask: "docs"`,
	}, got)
}

func TestDeleteTask_OnlyCreatorMayDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user("alice")
	mallory := f.user("mallory")

	root := f.task(alice, "root", nil)
	child := f.task(alice, "child", root)

	start := len(f.tx.entries())
	err := f.svc.DeleteTask(ctx, root.ID, mallory)
	assert.ErrorIs(t, err, ErrNotCreator)

	f.get(root.ID)
	f.get(child.ID)
	assert.Len(t, f.tx.entries(), start)
}

func TestDeleteTask_NotFound(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	err := f.svc.DeleteTask(context.Background(), uuid.New(), alice)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestDeleteTask_FailureLeavesTreeUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user("alice")

	root := f.task(alice, "root", nil)
	a := f.task(alice, "a", root)
	a1 := f.task(alice, "a1", a)
	b := f.task(alice, "b", root)

	f.tx.failDeleteOf = b.ID
	err := f.svc.DeleteTask(ctx, root.ID, alice)
	require.ErrorIs(t, err, errInjected)

	for _, id := range []uuid.UUID{root.ID, a.ID, a1.ID, b.ID} {
		f.get(id)
	}
	for _, msg := range f.history(root.ID) {
		assert.NotContains(t, msg, "Deleted subtask")
	}
	assert.Len(t, f.history(a1.ID), 1)
}

func TestDeleteTask_SubtreeOfChildLogsOnThatChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user("alice")

	root := f.task(alice, "root", nil)
	a := f.task(alice, "a", root)
	f.task(alice, "a1", a)

	require.NoError(t, f.svc.DeleteTask(ctx, a.ID, alice))

	history := f.history(root.ID)
	assert.NotContains(t, history, `Deleted subtask: "a1"`)
	assert.Contains(t, history, `Created subtask: "a"`)

	children, err := f.tx.Stores().Tasks.ListChildren(ctx, root.ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

type discardLogs struct {
	store.AuditLogStore
}

func (discardLogs) Create(context.Context, *domain.AuditLogEntry) error { return nil }

func TestDeleteSubtree_DetectsCycle(t *testing.T) {
	creator := uuid.New()
	root := &domain.Task{ID: uuid.New(), Title: "root", Status: domain.TaskStatusTodo, CreatorID: creator}
	child := &domain.Task{ID: uuid.New(), Title: "child", Status: domain.TaskStatusTodo, CreatorID: creator}
	child.ParentID = &root.ID
	root.ParentID = &child.ID
	tasks := &cyclicTasks{tasks: map[uuid.UUID]*domain.Task{root.ID: root, child.ID: child}}

	d := NewDeleter(nil, 0, nil)
	err := d.DeleteSubtree(context.Background(), store.Stores{Tasks: tasks, Logs: discardLogs{}}, root.ID, creator, baseTime)
	assert.ErrorIs(t, err, ErrHierarchyCycle)
}

func TestDeleteSubtree_LeafAtDepthLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user("alice")

	root := f.task(alice, "root", nil)
	a := f.task(alice, "a", root)
	b := f.task(alice, "b", a)

	// The same depth limit admits a rollup from b through both ancestors.
	err := f.tx.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		return NewPropagator(2, nil).PropagateFromChild(ctx, s, b.ID, f.now)
	})
	require.NoError(t, err)

	d := NewDeleter(nil, 2, nil)
	err = f.tx.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		return d.DeleteSubtree(ctx, s, root.ID, alice, f.now)
	})
	require.NoError(t, err)

	for _, id := range []uuid.UUID{root.ID, a.ID, b.ID} {
		_, err := f.tx.Stores().Tasks.GetByID(ctx, id)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	}
}

func TestDeleteSubtree_DepthLimit(t *testing.T) {
	f := newFixture(t)
	alice := f.user("alice")

	root := f.task(alice, "root", nil)
	a := f.task(alice, "a", root)
	b := f.task(alice, "b", a)
	f.task(alice, "c", b)

	d := NewDeleter(nil, 2, nil)
	err := f.tx.WithinTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		return d.DeleteSubtree(ctx, s, root.ID, alice, f.now)
	})
	assert.ErrorIs(t, err, ErrHierarchyTooDeep)
	f.get(b.ID)
}
