package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *Store, name string) uuid.UUID {
	t.Helper()
	u := &domain.User{ID: uuid.New(), Username: name}
	require.NoError(t, s.Stores().Users.Create(context.Background(), u))
	return u.ID
}

func seedTask(t *testing.T, s *Store, creator uuid.UUID, title string, parent *uuid.UUID) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(creator, title, baseTime)
	require.NoError(t, err)
	task.ParentID = parent
	require.NoError(t, s.Stores().Tasks.Create(context.Background(), task))
	return task
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")

	task := seedTask(t, s, alice, "Write report", nil)

	got, err := s.Stores().Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, alice, got.CreatorID)

	// Returned tasks are copies.
	got.Title = "changed"
	again, err := s.Stores().Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", again.Title)

	_, err = s.Stores().Tasks.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskStore_CreateForeignKeys(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")

	orphan, err := domain.NewTask(alice, "orphan", baseTime)
	require.NoError(t, err)
	missing := uuid.New()
	orphan.ParentID = &missing
	assert.ErrorIs(t, s.Stores().Tasks.Create(ctx, orphan), store.ErrInvalidEntity)

	ghost, err := domain.NewTask(uuid.New(), "ghost creator", baseTime)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Stores().Tasks.Create(ctx, ghost), store.ErrInvalidEntity)

	task := seedTask(t, s, alice, "root", nil)
	err = s.Stores().Tasks.AddMember(ctx, task.ID, domain.RelationAssignee, uuid.New())
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestTaskStore_MembersAreIdempotent(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	task := seedTask(t, s, alice, "root", nil)
	tasks := s.Stores().Tasks

	require.NoError(t, tasks.AddMember(ctx, task.ID, domain.RelationAssignee, bob))
	require.NoError(t, tasks.AddMember(ctx, task.ID, domain.RelationAssignee, bob))
	got, err := tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{bob}, got.AssigneeIDs)

	require.NoError(t, tasks.RemoveMember(ctx, task.ID, domain.RelationAssignee, bob))
	require.NoError(t, tasks.RemoveMember(ctx, task.ID, domain.RelationAssignee, bob))
	got, err = tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AssigneeIDs)
}

func TestTaskStore_UpdateKeepsImmutableFields(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	task := seedTask(t, s, alice, "root", nil)
	require.NoError(t, s.Stores().Tasks.AddMember(ctx, task.ID, domain.RelationFollower, bob))

	task.Status = domain.TaskStatusDone
	task.CreatorID = bob
	task.FollowerIDs = nil
	require.NoError(t, s.Stores().Tasks.Update(ctx, task))

	got, err := s.Stores().Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, got.Status)
	assert.Equal(t, alice, got.CreatorID)
	assert.Equal(t, []uuid.UUID{bob}, got.FollowerIDs)
}

func TestTaskStore_DeleteCascadesLogsAndNotifications(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	root := seedTask(t, s, alice, "root", nil)
	child := seedTask(t, s, alice, "child", &root.ID)
	stores := s.Stores()

	entry, err := domain.NewAuditLogEntry(child.ID, alice, domain.LogTypeHistory, "Created task", baseTime)
	require.NoError(t, err)
	require.NoError(t, stores.Logs.Create(ctx, entry))
	n, err := domain.NewNotification(domain.NotificationDueSoon, alice, &child.ID, "soon", baseTime)
	require.NoError(t, err)
	require.NoError(t, stores.Notifications.Create(ctx, n))

	// Parents cannot be removed before their children.
	assert.ErrorIs(t, stores.Tasks.Delete(ctx, root.ID), store.ErrInvalidEntity)

	require.NoError(t, stores.Tasks.Delete(ctx, child.ID))
	logs, err := stores.Logs.ListByTask(ctx, child.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
	notes, err := stores.Notifications.ListByUser(ctx, alice, 0)
	require.NoError(t, err)
	assert.Empty(t, notes)

	require.NoError(t, stores.Tasks.Delete(ctx, root.ID))
	assert.ErrorIs(t, stores.Tasks.Delete(ctx, root.ID), store.ErrTaskNotFound)
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	task := seedTask(t, s, alice, "root", nil)
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		loaded, err := tx.Tasks.GetForUpdate(ctx, task.ID)
		require.NoError(t, err)
		loaded.Status = domain.TaskStatusDone
		require.NoError(t, tx.Tasks.Update(ctx, loaded))

		// The change is visible inside the transaction only.
		inside, err := tx.Tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusDone, inside.Status)
		outside, err := s.Stores().Tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusTodo, outside.Status)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Stores().Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusTodo, got.Status)
}

func TestWithinTx_CancelledContextRollsBack(t *testing.T) {
	s := New(nil)
	alice := seedUser(t, s, "alice")
	task := seedTask(t, s, alice, "root", nil)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		loaded, err := tx.Tasks.GetForUpdate(ctx, task.ID)
		if err != nil {
			return err
		}
		loaded.Title = "renamed"
		if err := tx.Tasks.Update(ctx, loaded); err != nil {
			return err
		}
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	got, err := s.Stores().Tasks.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", got.Title)
}

func TestWithinTx_Commit(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	task := seedTask(t, s, alice, "root", nil)

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
		loaded, err := tx.Tasks.GetForUpdate(ctx, task.ID)
		if err != nil {
			return err
		}
		loaded.Status = domain.TaskStatusPending
		return tx.Tasks.Update(ctx, loaded)
	})
	require.NoError(t, err)

	got, err := s.Stores().Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, got.Status)
}

func TestWithinTx_ConcurrentWritersSerialize(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	task := seedTask(t, s, alice, "counter", nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(ctx context.Context, tx store.Stores) error {
				loaded, err := tx.Tasks.GetForUpdate(ctx, task.ID)
				if err != nil {
					return err
				}
				loaded.Description += "x"
				return tx.Tasks.Update(ctx, loaded)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Stores().Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, got.Description, 20)
}

func TestTaskStore_ScannerQueries(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	now := baseTime
	tasks := s.Stores().Tasks

	mk := func(title string, due time.Time, status domain.TaskStatus) *domain.Task {
		task := seedTask(t, s, alice, title, nil)
		task.DueDate = &due
		task.Status = status
		require.NoError(t, tasks.Update(ctx, task))
		return task
	}
	soon := mk("soon", now.Add(3*time.Hour), domain.TaskStatusTodo)
	mk("later", now.Add(48*time.Hour), domain.TaskStatusTodo)
	mk("done soon", now.Add(2*time.Hour), domain.TaskStatusDone)
	late := mk("late", now.Add(-2*time.Hour), domain.TaskStatusPending)
	seedTask(t, s, alice, "no due date", nil)

	due, err := tasks.FindOpenDueBetween(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.ID, due[0].ID)

	overdue, err := tasks.FindOpenOverdue(ctx, now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)

	rec := seedTask(t, s, alice, "weekly", nil)
	rec.IsRecurring = true
	rec.RecurrenceRule = "weekly"
	rec.Status = domain.TaskStatusDone
	require.NoError(t, tasks.Update(ctx, rec))
	norule := seedTask(t, s, alice, "no rule", nil)
	norule.IsRecurring = true
	norule.Status = domain.TaskStatusDone
	require.NoError(t, tasks.Update(ctx, norule))

	recurring, err := tasks.FindRecurringDone(ctx)
	require.NoError(t, err)
	require.Len(t, recurring, 1)
	assert.Equal(t, rec.ID, recurring[0].ID)
}

func TestTaskStore_ListVisibilityAndSort(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	carol := seedUser(t, s, "carol")
	stores := s.Stores()

	team := &domain.Team{ID: uuid.New(), Name: "core", CreatorID: bob, MemberIDs: []uuid.UUID{carol}}
	require.NoError(t, stores.Teams.Create(ctx, team))

	own := seedTask(t, s, alice, "own", nil)
	followed := seedTask(t, s, bob, "followed", nil)
	require.NoError(t, stores.Tasks.AddMember(ctx, followed.ID, domain.RelationFollower, alice))
	teamTask := seedTask(t, s, bob, "team", nil)
	require.NoError(t, stores.Tasks.AddMember(ctx, teamTask.ID, domain.RelationTeam, team.ID))
	seedTask(t, s, bob, "private", nil)

	aliceTasks, err := stores.Tasks.List(ctx, store.TaskQuery{ViewerID: alice, SortBy: store.SortByID, Order: store.SortAsc})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{own.ID, followed.ID}, taskIDs(aliceTasks))

	carolTasks, err := stores.Tasks.List(ctx, store.TaskQuery{ViewerID: carol})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{teamTask.ID}, taskIDs(carolTasks))

	byCreator, err := stores.Tasks.List(ctx, store.TaskQuery{
		ViewerID: alice, SortBy: store.SortByCreator, Order: store.SortAsc,
	})
	require.NoError(t, err)
	require.Len(t, byCreator, 2)
	assert.Equal(t, own.ID, byCreator[0].ID)

	filtered, err := stores.Tasks.List(ctx, store.TaskQuery{ViewerID: alice, CreatorID: &bob})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{followed.ID}, taskIDs(filtered))
}

func TestAuditLogStore_NewestFirstWithAuthor(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	task := seedTask(t, s, alice, "root", nil)
	logs := s.Stores().Logs

	for _, content := range []string{"first", "second", "third"} {
		entry, err := domain.NewAuditLogEntry(task.ID, alice, domain.LogTypeHistory, content, baseTime)
		require.NoError(t, err)
		require.NoError(t, logs.Create(ctx, entry))
	}

	got, err := logs.ListByTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "third", got[0].Content)
	assert.Equal(t, "first", got[2].Content)
	assert.Equal(t, "alice", got[0].AuthorName)
}

func TestNotificationStore_Inbox(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	notes := s.Stores().Notifications

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		n, err := domain.NewNotification(domain.NotificationAssigned, alice, nil, "assigned", baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, notes.Create(ctx, n))
		ids = append(ids, n.ID)
	}

	list, err := notes.ListByUser(ctx, alice, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)

	// Another user's mark is ignored.
	require.NoError(t, notes.MarkRead(ctx, bob, ids[0]))
	count, err := notes.CountUnread(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, notes.MarkRead(ctx, alice, ids[0]))
	require.NoError(t, notes.MarkRead(ctx, alice, uuid.New()))
	count, err = notes.CountUnread(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, notes.MarkAllRead(ctx, alice))
	count, err = notes.CountUnread(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDirectory(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	alice := seedUser(t, s, "alice")

	assert.ErrorIs(t, s.Stores().Users.Create(ctx, &domain.User{ID: alice, Username: "dup"}), store.ErrDuplicate)
	_, err := s.Stores().Users.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	_, err = s.Stores().Teams.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrTeamNotFound)
}

func taskIDs(tasks []*domain.Task) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}
