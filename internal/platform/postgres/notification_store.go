package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

const notificationSavepoint = "notification_insert"

// PostgresNotificationStore implements store.NotificationStore.
type PostgresNotificationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNotificationStore creates a new PostgreSQL notification store.
func NewPostgresNotificationStore(db store.DBTX, logger *slog.Logger) *PostgresNotificationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresNotificationStore{
		db:     db,
		logger: logger.With(slog.String("component", "notification_store")),
	}
}

var _ store.NotificationStore = (*PostgresNotificationStore)(nil)

// Create implements store.NotificationStore.Create.
// Inside a transaction the insert runs under a savepoint, so a failed
// insert for one recipient leaves the transaction usable for the rest.
func (s *PostgresNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := n.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	inTx := store.InTx(s.db)
	if inTx {
		if _, err := s.db.ExecContext(ctx, "SAVEPOINT "+notificationSavepoint); err != nil {
			return MapError(err)
		}
	}

	query := `
		INSERT INTO notifications (id, type, message, is_read, user_id, task_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		n.ID,
		string(n.Type),
		n.Message,
		n.IsRead,
		n.UserID,
		nullUUID(n.TaskID),
		n.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create notification",
			slog.String("error", err.Error()),
			slog.String("user_id", n.UserID.String()))
		if inTx {
			if _, rbErr := s.db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+notificationSavepoint); rbErr != nil {
				return fmt.Errorf("rollback to savepoint: %v (original error: %w)", rbErr, MapError(err))
			}
		}
		return MapError(err)
	}

	if inTx {
		if _, err := s.db.ExecContext(ctx, "RELEASE SAVEPOINT "+notificationSavepoint); err != nil {
			return MapError(err)
		}
	}

	log.Debug("notification created",
		slog.String("notification_id", n.ID.String()),
		slog.String("type", string(n.Type)),
		slog.String("user_id", n.UserID.String()))
	return nil
}

// ListByUser implements store.NotificationStore.ListByUser
func (s *PostgresNotificationStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT id, type, message, is_read, user_id, task_id, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, seq DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ListByTask implements store.NotificationStore.ListByTask
func (s *PostgresNotificationStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Notification, error) {
	query := `
		SELECT id, type, message, is_read, user_id, task_id, created_at
		FROM notifications
		WHERE task_id = $1
		ORDER BY created_at DESC, seq DESC
	`
	return s.query(ctx, query, taskID)
}

// CountUnread implements store.NotificationStore.CountUnread
func (s *PostgresNotificationStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID,
	).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// MarkRead implements store.NotificationStore.MarkRead
func (s *PostgresNotificationStore) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	return MapError(err)
}

// MarkAllRead implements store.NotificationStore.MarkAllRead
func (s *PostgresNotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return MapError(err)
	}
	if n, err := result.RowsAffected(); err == nil {
		logger.FromContextOrDefault(ctx, s.logger).Debug("notifications marked read",
			slog.String("user_id", userID.String()),
			slog.Int64("count", n))
	}
	return nil
}

func (s *PostgresNotificationStore) query(ctx context.Context, query string, args ...any) ([]*domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query notifications",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	out := []*domain.Notification{}
	for rows.Next() {
		var (
			n      domain.Notification
			nType  string
			taskID uuid.NullUUID
		)
		if err := rows.Scan(&n.ID, &nType, &n.Message, &n.IsRead, &n.UserID, &taskID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = domain.NotificationType(nType)
		if taskID.Valid {
			id := taskID.UUID
			n.TaskID = &id
		}
		n.CreatedAt = n.CreatedAt.UTC()
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}
