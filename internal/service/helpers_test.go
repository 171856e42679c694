package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/events"
	"github.com/phrazzld/taskhive/internal/platform/memory"
	"github.com/phrazzld/taskhive/internal/store"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

var errInjected = errors.New("injected failure")

// faultyTransactor wraps the memory store, counts task writes and can fail
// chosen writes inside transactions.
type faultyTransactor struct {
	*memory.Store

	mu           sync.Mutex
	failUpdateOf uuid.UUID
	failDeleteOf uuid.UUID
	updates      int
	logged       []*domain.AuditLogEntry
}

func (f *faultyTransactor) WithinTx(ctx context.Context, fn store.StoresFn) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		s.Tasks = &faultyTasks{TaskStore: s.Tasks, f: f}
		s.Logs = &recordingLogs{AuditLogStore: s.Logs, f: f}
		return fn(ctx, s)
	})
}

func (f *faultyTransactor) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

func (f *faultyTransactor) entries() []*domain.AuditLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.AuditLogEntry(nil), f.logged...)
}

type faultyTasks struct {
	store.TaskStore
	f *faultyTransactor
}

func (t *faultyTasks) Update(ctx context.Context, task *domain.Task) error {
	t.f.mu.Lock()
	t.f.updates++
	fail := task.ID == t.f.failUpdateOf
	t.f.mu.Unlock()
	if fail {
		return errInjected
	}
	return t.TaskStore.Update(ctx, task)
}

func (t *faultyTasks) Delete(ctx context.Context, id uuid.UUID) error {
	if id == t.f.failDeleteOf {
		return errInjected
	}
	return t.TaskStore.Delete(ctx, id)
}

type recordingLogs struct {
	store.AuditLogStore
	f *faultyTransactor
}

func (l *recordingLogs) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	if err := l.AuditLogStore.Create(ctx, entry); err != nil {
		return err
	}
	l.f.mu.Lock()
	l.f.logged = append(l.f.logged, entry)
	l.f.mu.Unlock()
	return nil
}

type fixture struct {
	t       *testing.T
	tx      *faultyTransactor
	svc     TaskService
	inbox   NotificationService
	emitter *events.InMemoryEventEmitter
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:   t,
		tx:  &faultyTransactor{Store: memory.New(nil)},
		now: baseTime,
	}
	clock := WithClock(func() time.Time { return f.now })

	f.emitter = events.NewInMemoryEventEmitter(nil)
	f.emitter.RegisterHandler(NewAssignmentNotifier(f.tx, nil, clock))

	svc, err := NewTaskService(f.tx, f.emitter, nil, clock)
	require.NoError(t, err)
	f.svc = svc

	inbox, err := NewNotificationService(f.tx, nil)
	require.NoError(t, err)
	f.inbox = inbox
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) user(name string) uuid.UUID {
	f.t.Helper()
	u := &domain.User{ID: uuid.New(), Username: name}
	require.NoError(f.t, f.tx.Stores().Users.Create(context.Background(), u))
	return u.ID
}

func (f *fixture) team(name string, creator uuid.UUID) uuid.UUID {
	f.t.Helper()
	team := &domain.Team{ID: uuid.New(), Name: name, CreatorID: creator}
	require.NoError(f.t, f.tx.Stores().Teams.Create(context.Background(), team))
	return team.ID
}

// task creates a task one minute after the previous one so sibling order
// is deterministic.
func (f *fixture) task(creator uuid.UUID, title string, parent *domain.Task) *domain.Task {
	f.t.Helper()
	f.advance(time.Minute)
	in := CreateTaskInput{Title: title}
	if parent != nil {
		in.ParentID = &parent.ID
	}
	task, err := f.svc.CreateTask(context.Background(), creator, in)
	require.NoError(f.t, err)
	return task
}

func (f *fixture) get(id uuid.UUID) *domain.Task {
	f.t.Helper()
	task, err := f.tx.Stores().Tasks.GetByID(context.Background(), id)
	require.NoError(f.t, err)
	return task
}

func (f *fixture) setStatus(task *domain.Task, editor uuid.UUID, status domain.TaskStatus) error {
	_, err := f.svc.UpdateTask(context.Background(), task.ID, editor, UpdateTaskInput{Status: &status})
	return err
}

func (f *fixture) history(id uuid.UUID) []string {
	f.t.Helper()
	entries, err := f.svc.GetHistory(context.Background(), id)
	require.NoError(f.t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Content)
	}
	return out
}

func strPtr(s string) *string { return &s }
