package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the task service.
const (
	// AssigneeAdded fires after a user has been added to a task's assignees
	// and the change has been committed.
	AssigneeAdded = "assignee.added"
)

// TaskEvent describes a committed change to a task.
type TaskEvent struct {
	ID   uuid.UUID `json:"id"`
	Type string    `json:"type"`

	TaskID uuid.UUID `json:"task_id"`
	// ActorID is the user who made the change.
	ActorID uuid.UUID `json:"actor_id"`
	// SubjectID is the user or team the change is about, if any.
	SubjectID uuid.UUID `json:"subject_id,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent creates a TaskEvent with a fresh ID.
func NewTaskEvent(eventType string, taskID, actorID, subjectID uuid.UUID, at time.Time) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		Type:       eventType,
		TaskID:     taskID,
		ActorID:    actorID,
		SubjectID:  subjectID,
		OccurredAt: at,
	}
}

// EventHandler defines an interface for components that can handle events.
// Handlers ignore event types they do not care about.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
