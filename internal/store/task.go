package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
)

// TaskSortField names a column ListTasks can order by.
type TaskSortField string

// Sortable task fields
const (
	SortByCreatedAt TaskSortField = "createdAt"
	SortByDueDate   TaskSortField = "dueDate"
	SortByCreator   TaskSortField = "creator"
	SortByID        TaskSortField = "id"
)

// SortOrder is the direction of a sort.
type SortOrder string

// Sort directions
const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// TaskQuery filters the tasks visible to ViewerID. A task is visible when
// the viewer created it, follows it, is assigned to it, or created or
// belongs to one of its teams. Nil filters are ignored.
type TaskQuery struct {
	ViewerID uuid.UUID

	CreatorID  *uuid.UUID
	AssigneeID *uuid.UUID
	TeamID     *uuid.UUID

	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	DueAfter      *time.Time
	DueBefore     *time.Time

	SortBy TaskSortField
	Order  SortOrder
}

// Normalize fills in default sorting.
func (q TaskQuery) Normalize() TaskQuery {
	switch q.SortBy {
	case SortByCreatedAt, SortByDueDate, SortByCreator, SortByID:
	default:
		q.SortBy = SortByCreatedAt
	}
	if q.Order != SortAsc {
		q.Order = SortDesc
	}
	return q
}

// TaskStore defines the interface for task persistence, including the
// assignee, follower and team associations.
//
// Returned tasks always carry their membership sets. Child lists are not
// stored on the task; use ListChildren.
type TaskStore interface {
	// Create saves a new task together with its membership sets.
	// Returns ErrInvalidEntity if validation fails or a referenced row is missing.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetForUpdate retrieves a task and locks its row until the enclosing
	// transaction ends. Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update persists the scalar fields of a task: title, description, status,
	// due date, recurrence, privacy and lastNotificationSent.
	// Membership sets are changed only through AddMember and RemoveMember.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a single task. Its audit log entries and notifications
	// are removed with it. Children are not touched; callers delete
	// bottom-up. Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListChildren returns the direct subtasks of parentID ordered by
	// creation time.
	ListChildren(ctx context.Context, parentID uuid.UUID) ([]*domain.Task, error)

	// AddMember inserts memberID into the given relation. Adding an existing
	// member is a no-op.
	AddMember(ctx context.Context, taskID uuid.UUID, rel domain.Relation, memberID uuid.UUID) error

	// RemoveMember deletes memberID from the given relation. Removing an
	// absent member is a no-op.
	RemoveMember(ctx context.Context, taskID uuid.UUID, rel domain.Relation, memberID uuid.UUID) error

	// FindOpenDueBetween returns tasks not DONE whose due date lies in (from, to].
	FindOpenDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error)

	// FindOpenOverdue returns tasks not DONE whose due date is before now.
	FindOpenOverdue(ctx context.Context, now time.Time) ([]*domain.Task, error)

	// FindRecurringDone returns DONE tasks flagged recurring with a non-empty rule.
	FindRecurringDone(ctx context.Context) ([]*domain.Task, error)

	// List returns the tasks matching q.
	List(ctx context.Context, q TaskQuery) ([]*domain.Task, error)
}
