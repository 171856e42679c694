package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies a notification.
type NotificationType string

// Notification types
const (
	NotificationDueSoon  NotificationType = "DUE_SOON"
	NotificationOverdue  NotificationType = "OVERDUE"
	NotificationAssigned NotificationType = "ASSIGNED"
	NotificationComment  NotificationType = "COMMENT"
)

// Common validation errors for Notification
var (
	ErrEmptyNotificationUserID  = errors.New("notification user ID cannot be empty")
	ErrEmptyNotificationMessage = errors.New("notification message cannot be empty")
	ErrInvalidNotificationType  = errors.New("invalid notification type")
)

// Notification is a message addressed to one user. Only IsRead ever changes
// after creation.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"is_read"`
	UserID    uuid.UUID        `json:"user_id"`
	TaskID    *uuid.UUID       `json:"task_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotification creates a validated unread notification.
func NewNotification(
	notificationType NotificationType,
	userID uuid.UUID,
	taskID *uuid.UUID,
	message string,
	now time.Time,
) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		Type:      notificationType,
		Message:   message,
		UserID:    userID,
		TaskID:    taskID,
		CreatedAt: now.UTC(),
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks if the notification has valid data.
func (n *Notification) Validate() error {
	if n.UserID == uuid.Nil {
		return ErrEmptyNotificationUserID
	}
	if n.Message == "" {
		return ErrEmptyNotificationMessage
	}
	switch n.Type {
	case NotificationDueSoon, NotificationOverdue, NotificationAssigned, NotificationComment:
		return nil
	default:
		return ErrInvalidNotificationType
	}
}

// DueSoonMessage formats the reminder text for a task due at dueDate,
// with the remaining time rounded to whole hours.
func DueSoonMessage(title string, dueDate, now time.Time) string {
	hours := int(math.Round(dueDate.Sub(now).Hours()))
	return fmt.Sprintf(`Task "%s" is due in %d hours`, title, hours)
}

// OverdueMessage formats the reminder text for an overdue task.
func OverdueMessage(title string) string {
	return fmt.Sprintf(`Task "%s" is overdue`, title)
}

// AssignedMessage formats the text sent to a new assignee.
func AssignedMessage(title, actorName string) string {
	return fmt.Sprintf(`%s assigned you to task "%s"`, actorName, title)
}
