package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/store"
)

// Dispatcher delivers one notification to its recipient. It runs inside the
// per-task transaction of the job that produced the notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, s store.Stores, n *domain.Notification) error
}

// StoreDispatcher delivers notifications by persisting them to the user's inbox.
type StoreDispatcher struct{}

var _ Dispatcher = StoreDispatcher{}

// Dispatch stores n through the transaction's notification store.
func (StoreDispatcher) Dispatch(ctx context.Context, s store.Stores, n *domain.Notification) error {
	return s.Notifications.Create(ctx, n)
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(ctx context.Context, s store.Stores, n *domain.Notification) error

// Dispatch calls f.
func (f DispatchFunc) Dispatch(ctx context.Context, s store.Stores, n *domain.Notification) error {
	return f(ctx, s, n)
}

// DispatchError records a failure to deliver one notification. It is logged
// and counted by the scanner, never returned from a run.
type DispatchError struct {
	TaskID uuid.UUID
	UserID uuid.UUID
	Type   domain.NotificationType
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s notification for task %s to user %s: %v", e.Type, e.TaskID, e.UserID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
