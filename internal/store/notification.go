package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
)

// NotificationStore persists per-user notifications.
type NotificationStore interface {
	// Create saves a new notification.
	Create(ctx context.Context, n *domain.Notification) error

	// ListByUser returns up to limit notifications for the user, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error)

	// ListByTask returns every notification referencing the task.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Notification, error)

	// CountUnread returns the number of unread notifications for the user.
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)

	// MarkRead flags one of the user's notifications as read. IDs that are
	// missing or owned by someone else are ignored.
	MarkRead(ctx context.Context, userID, id uuid.UUID) error

	// MarkAllRead flags every notification of the user as read.
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}
