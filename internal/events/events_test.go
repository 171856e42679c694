package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewTaskEvent(t *testing.T) {
	taskID, actor, subject := uuid.New(), uuid.New(), uuid.New()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	event := NewTaskEvent(AssigneeAdded, taskID, actor, subject, at)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, AssigneeAdded, event.Type)
	assert.Equal(t, taskID, event.TaskID)
	assert.Equal(t, actor, event.ActorID)
	assert.Equal(t, subject, event.SubjectID)
	assert.Equal(t, at, event.OccurredAt)
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	LastEvent    *TaskEvent
	HandlerError error
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestHandlerFunc(t *testing.T) {
	var got *TaskEvent
	h := HandlerFunc(func(ctx context.Context, event *TaskEvent) error {
		got = event
		return nil
	})

	event := NewTaskEvent(AssigneeAdded, uuid.New(), uuid.New(), uuid.New(), time.Now())
	assert.NoError(t, h.HandleEvent(context.Background(), event))
	assert.Same(t, event, got)
}
