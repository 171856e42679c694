package domain

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the progress state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusTodo    TaskStatus = "TODO"
	TaskStatusPending TaskStatus = "PENDING"
	TaskStatusDone    TaskStatus = "DONE"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrEmptyTaskTitle     = errors.New("task title cannot be empty")
	ErrEmptyTaskCreatorID = errors.New("task creator ID cannot be empty")
)

// Task is a unit of work owned by its creator. Tasks form a forest through
// ParentID; a task with a nil ParentID is a root.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`

	// CreatorID never changes after creation.
	CreatorID   uuid.UUID   `json:"creator_id"`
	AssigneeIDs []uuid.UUID `json:"assignee_ids"`
	FollowerIDs []uuid.UUID `json:"follower_ids"`
	TeamIDs     []uuid.UUID `json:"team_ids"`
	ParentID    *uuid.UUID  `json:"parent_id,omitempty"`

	IsRecurring    bool   `json:"is_recurring"`
	RecurrenceRule string `json:"recurrence_rule,omitempty"`
	IsPrivate      bool   `json:"is_private"`

	LastNotificationSent *time.Time `json:"last_notification_sent,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// NewTask creates a new TODO task owned by creatorID.
// Returns an error if validation fails.
func NewTask(creatorID uuid.UUID, title string, now time.Time) (*Task, error) {
	task := &Task{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(title),
		Status:      TaskStatusTodo,
		CreatorID:   creatorID,
		AssigneeIDs: []uuid.UUID{},
		FollowerIDs: []uuid.UUID{},
		TeamIDs:     []uuid.UUID{},
		IsPrivate:   true,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.Title == "" {
		return ErrEmptyTaskTitle
	}
	if t.CreatorID == uuid.Nil {
		return ErrEmptyTaskCreatorID
	}
	if !t.Status.IsValid() {
		return ErrInvalidStatus
	}
	if t.ParentID != nil && *t.ParentID == t.ID {
		return ErrSelfParent
	}
	return nil
}

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusPending, TaskStatusDone:
		return true
	default:
		return false
	}
}

// IsDone reports whether the task is completed.
func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// HasParent reports whether the task is a subtask.
func (t *Task) HasParent() bool {
	return t.ParentID != nil && *t.ParentID != uuid.Nil
}

// HoursSinceLastNotification returns the elapsed hours since the last
// reminder, or +Inf when no reminder was ever sent.
func (t *Task) HoursSinceLastNotification(now time.Time) float64 {
	if t.LastNotificationSent == nil {
		return math.Inf(1)
	}
	return now.Sub(*t.LastNotificationSent).Hours()
}

// Recipients returns the creator, assignees and followers with duplicates
// removed, in that order.
func (t *Task) Recipients() []uuid.UUID {
	n := 1 + len(t.AssigneeIDs) + len(t.FollowerIDs)
	seen := make(map[uuid.UUID]struct{}, n)
	out := make([]uuid.UUID, 0, n)

	add := func(id uuid.UUID) {
		if id == uuid.Nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	add(t.CreatorID)
	for _, id := range t.AssigneeIDs {
		add(id)
	}
	for _, id := range t.FollowerIDs {
		add(id)
	}
	return out
}

// HasAssignee reports whether userID is assigned to the task.
func (t *Task) HasAssignee(userID uuid.UUID) bool { return containsID(t.AssigneeIDs, userID) }

// HasFollower reports whether userID follows the task.
func (t *Task) HasFollower(userID uuid.UUID) bool { return containsID(t.FollowerIDs, userID) }

// HasTeam reports whether the team is linked to the task.
func (t *Task) HasTeam(teamID uuid.UUID) bool { return containsID(t.TeamIDs, teamID) }

// CloneForRecurrence returns a fresh TODO instance carrying the template
// fields of t, due at dueDate.
func (t *Task) CloneForRecurrence(dueDate, now time.Time) *Task {
	due := dueDate.UTC()
	return &Task{
		ID:             uuid.New(),
		Title:          t.Title,
		Description:    t.Description,
		Status:         TaskStatusTodo,
		DueDate:        &due,
		CreatorID:      t.CreatorID,
		AssigneeIDs:    append([]uuid.UUID{}, t.AssigneeIDs...),
		FollowerIDs:    append([]uuid.UUID{}, t.FollowerIDs...),
		TeamIDs:        append([]uuid.UUID{}, t.TeamIDs...),
		IsRecurring:    true,
		RecurrenceRule: t.RecurrenceRule,
		IsPrivate:      t.IsPrivate,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
}

// Relation names one of the many-to-many task memberships.
type Relation string

// Membership relations
const (
	RelationAssignee Relation = "assignee"
	RelationFollower Relation = "follower"
	RelationTeam     Relation = "team"
)

// Has reports whether memberID is present in the given relation of t.
func (t *Task) Has(rel Relation, memberID uuid.UUID) bool {
	switch rel {
	case RelationAssignee:
		return t.HasAssignee(memberID)
	case RelationFollower:
		return t.HasFollower(memberID)
	case RelationTeam:
		return t.HasTeam(memberID)
	}
	return false
}

// Add inserts memberID into the relation. It reports false if it was
// already present.
func (t *Task) Add(rel Relation, memberID uuid.UUID) bool {
	if t.Has(rel, memberID) {
		return false
	}
	switch rel {
	case RelationAssignee:
		t.AssigneeIDs = append(t.AssigneeIDs, memberID)
	case RelationFollower:
		t.FollowerIDs = append(t.FollowerIDs, memberID)
	case RelationTeam:
		t.TeamIDs = append(t.TeamIDs, memberID)
	default:
		return false
	}
	return true
}

// Remove deletes memberID from the relation. It reports false if it was
// not present.
func (t *Task) Remove(rel Relation, memberID uuid.UUID) bool {
	if !t.Has(rel, memberID) {
		return false
	}
	switch rel {
	case RelationAssignee:
		t.AssigneeIDs = removeID(t.AssigneeIDs, memberID)
	case RelationFollower:
		t.FollowerIDs = removeID(t.FollowerIDs, memberID)
	case RelationTeam:
		t.TeamIDs = removeID(t.TeamIDs, memberID)
	}
	return true
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
