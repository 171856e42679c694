package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/events"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// InboxLimit is the number of notifications ListNotifications returns.
const InboxLimit = 50

// NotificationService serves a user's notification inbox.
type NotificationService interface {
	// ListNotifications returns the user's newest notifications, newest first.
	ListNotifications(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error)

	// UnreadCount returns how many of the user's notifications are unread.
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)

	// MarkRead marks one notification read. IDs that are missing or belong
	// to another user are ignored.
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error

	// MarkAllRead marks every notification of the user read.
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

type notificationServiceImpl struct {
	notifications store.NotificationStore
	logger        *slog.Logger
}

// NewNotificationService creates a NotificationService backed by the
// transactor's non-transactional stores.
func NewNotificationService(tx store.Transactor, logger *slog.Logger) (NotificationService, error) {
	if tx == nil {
		return nil, domain.NewValidationError("tx", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &notificationServiceImpl{
		notifications: tx.Stores().Notifications,
		logger:        logger.With(slog.String("component", "notification_service")),
	}, nil
}

func (s *notificationServiceImpl) ListNotifications(ctx context.Context, userID uuid.UUID) ([]*domain.Notification, error) {
	list, err := s.notifications.ListByUser(ctx, userID, InboxLimit)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list notifications",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewTaskServiceError("list_notifications", "failed to list notifications", err)
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	return list, nil
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, NewTaskServiceError("unread_count", "failed to count notifications", err)
	}
	return count, nil
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.notifications.MarkRead(ctx, userID, notificationID); err != nil {
		return NewTaskServiceError("mark_read", "failed to mark notification read", err)
	}
	return nil
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.notifications.MarkAllRead(ctx, userID); err != nil {
		return NewTaskServiceError("mark_all_read", "failed to mark notifications read", err)
	}
	return nil
}

// AssignmentNotifier turns assignee.added events into ASSIGNED notifications
// for the new assignee. Users who assign themselves are not notified.
type AssignmentNotifier struct {
	tx     store.Transactor
	now    Clock
	logger *slog.Logger
}

var _ events.EventHandler = (*AssignmentNotifier)(nil)

// NewAssignmentNotifier creates an AssignmentNotifier.
func NewAssignmentNotifier(tx store.Transactor, logger *slog.Logger, opts ...Option) *AssignmentNotifier {
	if tx == nil {
		panic("tx cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentNotifier{
		tx:     tx,
		now:    buildOptions(opts).clock,
		logger: logger.With(slog.String("component", "assignment_notifier")),
	}
}

// HandleEvent implements events.EventHandler.
func (n *AssignmentNotifier) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	if event.Type != events.AssigneeAdded || event.SubjectID == event.ActorID {
		return nil
	}
	log := logger.FromContextOrDefault(ctx, n.logger)
	st := n.tx.Stores()

	task, err := st.Tasks.GetByID(ctx, event.TaskID)
	if err != nil {
		return err
	}
	actorName := event.ActorID.String()
	if actor, err := st.Users.GetByID(ctx, event.ActorID); err == nil {
		actorName = actor.DisplayName()
	}

	taskID := task.ID
	notification, err := domain.NewNotification(
		domain.NotificationAssigned,
		event.SubjectID,
		&taskID,
		domain.AssignedMessage(task.Title, actorName),
		n.now(),
	)
	if err != nil {
		return err
	}
	if err := st.Notifications.Create(ctx, notification); err != nil {
		log.Error("failed to create assignment notification",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()),
			slog.String("user_id", event.SubjectID.String()))
		return err
	}

	log.Debug("assignment notification created",
		slog.String("task_id", task.ID.String()),
		slog.String("user_id", event.SubjectID.String()))
	return nil
}
