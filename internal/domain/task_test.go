package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	creator := uuid.New()

	task, err := NewTask(creator, "  Write report  ", now)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, TaskStatusTodo, task.Status)
	assert.Equal(t, creator, task.CreatorID)
	assert.True(t, task.IsPrivate)
	assert.Equal(t, now, task.CreatedAt)
	assert.Empty(t, task.AssigneeIDs)
	assert.NotNil(t, task.AssigneeIDs)

	_, err = NewTask(uuid.Nil, "title", now)
	assert.ErrorIs(t, err, ErrEmptyTaskCreatorID)

	_, err = NewTask(creator, "   ", now)
	assert.ErrorIs(t, err, ErrEmptyTaskTitle)
}

func TestTaskValidate(t *testing.T) {
	t.Parallel()
	valid := func() *Task {
		task, err := NewTask(uuid.New(), "title", time.Now())
		require.NoError(t, err)
		return task
	}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr error
	}{
		{"valid", func(*Task) {}, nil},
		{"nil id", func(tk *Task) { tk.ID = uuid.Nil }, ErrEmptyTaskID},
		{"bad status", func(tk *Task) { tk.Status = "STARTED" }, ErrInvalidStatus},
		{"self parent", func(tk *Task) { id := tk.ID; tk.ParentID = &id }, ErrSelfParent},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			task := valid()
			tc.mutate(task)
			err := task.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestHoursSinceLastNotification(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	task := &Task{}

	assert.True(t, math.IsInf(task.HoursSinceLastNotification(now), 1))

	last := now.Add(-13 * time.Hour)
	task.LastNotificationSent = &last
	assert.InDelta(t, 13.0, task.HoursSinceLastNotification(now), 1e-9)
}

func TestRecipientsDeduplicates(t *testing.T) {
	t.Parallel()
	creator, a, b := uuid.New(), uuid.New(), uuid.New()
	task := &Task{
		CreatorID:   creator,
		AssigneeIDs: []uuid.UUID{a, creator, b},
		FollowerIDs: []uuid.UUID{b, a, uuid.Nil},
	}

	assert.Equal(t, []uuid.UUID{creator, a, b}, task.Recipients())
}

func TestMembershipRelations(t *testing.T) {
	t.Parallel()
	task := &Task{}
	user := uuid.New()

	assert.True(t, task.Add(RelationAssignee, user))
	assert.False(t, task.Add(RelationAssignee, user))
	assert.Equal(t, []uuid.UUID{user}, task.AssigneeIDs)
	assert.False(t, task.Has(RelationFollower, user))

	assert.True(t, task.Add(RelationFollower, user))
	assert.True(t, task.Remove(RelationAssignee, user))
	assert.False(t, task.Remove(RelationAssignee, user))
	assert.Empty(t, task.AssigneeIDs)
	assert.True(t, task.HasFollower(user))

	team := uuid.New()
	assert.True(t, task.Add(RelationTeam, team))
	assert.True(t, task.HasTeam(team))
	assert.False(t, task.Add(Relation("owner"), team))
}

func TestCloneForRecurrence(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 8, 2, 0, 0, 0, time.UTC)
	parent := uuid.New()
	last := now.Add(-time.Hour)
	src := &Task{
		ID:                   uuid.New(),
		Title:                "Standup notes",
		Description:          "weekly",
		Status:               TaskStatusDone,
		CreatorID:            uuid.New(),
		AssigneeIDs:          []uuid.UUID{uuid.New()},
		FollowerIDs:          []uuid.UUID{uuid.New()},
		TeamIDs:              []uuid.UUID{uuid.New()},
		ParentID:             &parent,
		IsRecurring:          true,
		RecurrenceRule:       "weekly",
		LastNotificationSent: &last,
	}

	due := now.Add(7 * 24 * time.Hour)
	clone := src.CloneForRecurrence(due, now)

	assert.NotEqual(t, src.ID, clone.ID)
	assert.Equal(t, TaskStatusTodo, clone.Status)
	assert.Equal(t, src.Title, clone.Title)
	assert.Equal(t, src.Description, clone.Description)
	assert.Equal(t, src.CreatorID, clone.CreatorID)
	assert.Equal(t, src.AssigneeIDs, clone.AssigneeIDs)
	assert.Equal(t, src.FollowerIDs, clone.FollowerIDs)
	assert.Equal(t, src.TeamIDs, clone.TeamIDs)
	assert.True(t, clone.IsRecurring)
	assert.Equal(t, "weekly", clone.RecurrenceRule)
	assert.Nil(t, clone.ParentID)
	assert.Nil(t, clone.LastNotificationSent)
	require.NotNil(t, clone.DueDate)
	assert.Equal(t, due, *clone.DueDate)

	// Slices are copied, not shared.
	clone.AssigneeIDs[0] = uuid.New()
	assert.NotEqual(t, src.AssigneeIDs[0], clone.AssigneeIDs[0])
	assert.Equal(t, TaskStatusDone, src.Status)
}
