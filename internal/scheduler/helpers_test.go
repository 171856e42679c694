package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/memory"
	"github.com/phrazzld/taskhive/internal/store"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

var errBoom = errors.New("boom")

type env struct {
	t     *testing.T
	store *memory.Store
	now   time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return &env{t: t, store: memory.New(nil), now: baseTime}
}

func (e *env) clock() Option {
	return WithClock(func() time.Time { return e.now })
}

func (e *env) user(name string) uuid.UUID {
	e.t.Helper()
	u := &domain.User{ID: uuid.New(), Username: name}
	require.NoError(e.t, e.store.Stores().Users.Create(context.Background(), u))
	return u.ID
}

func (e *env) team(name string, creator uuid.UUID) uuid.UUID {
	e.t.Helper()
	team := &domain.Team{ID: uuid.New(), Name: name, CreatorID: creator}
	require.NoError(e.t, e.store.Stores().Teams.Create(context.Background(), team))
	return team.ID
}

// task stores a task due at due (nil for none) after applying mutate.
func (e *env) task(creator uuid.UUID, title string, due *time.Time, mutate func(*domain.Task)) *domain.Task {
	e.t.Helper()
	task, err := domain.NewTask(creator, title, e.now)
	require.NoError(e.t, err)
	task.DueDate = due
	if mutate != nil {
		mutate(task)
	}
	require.NoError(e.t, e.store.Stores().Tasks.Create(context.Background(), task))
	return task
}

func (e *env) get(id uuid.UUID) *domain.Task {
	e.t.Helper()
	task, err := e.store.Stores().Tasks.GetByID(context.Background(), id)
	require.NoError(e.t, err)
	return task
}

func (e *env) inbox(userID uuid.UUID) []*domain.Notification {
	e.t.Helper()
	list, err := e.store.Stores().Notifications.ListByUser(context.Background(), userID, 0)
	require.NoError(e.t, err)
	return list
}

func at(t time.Time) *time.Time { return &t }

// failingUpdates fails every update of one task inside transactions.
type failingUpdates struct {
	*memory.Store
	failID uuid.UUID
}

func (f *failingUpdates) WithinTx(ctx context.Context, fn store.StoresFn) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		s.Tasks = &failingTaskStore{TaskStore: s.Tasks, failID: f.failID}
		return fn(ctx, s)
	})
}

type failingTaskStore struct {
	store.TaskStore
	failID uuid.UUID
}

func (s *failingTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if task.ID == s.failID {
		return errBoom
	}
	return s.TaskStore.Update(ctx, task)
}

func (s *failingTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if task.Title == "cursed" {
		return errBoom
	}
	return s.TaskStore.Create(ctx, task)
}
