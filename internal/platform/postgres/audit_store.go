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

// PostgresAuditLogStore implements store.AuditLogStore on the task_logs table.
type PostgresAuditLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAuditLogStore creates a new PostgreSQL audit log store.
func NewPostgresAuditLogStore(db store.DBTX, logger *slog.Logger) *PostgresAuditLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAuditLogStore{
		db:     db,
		logger: logger.With(slog.String("component", "audit_log_store")),
	}
}

var _ store.AuditLogStore = (*PostgresAuditLogStore)(nil)

// Create implements store.AuditLogStore.Create
func (s *PostgresAuditLogStore) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO task_logs (id, task_id, type, content, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.TaskID,
		string(entry.Type),
		entry.Content,
		entry.UserID,
		entry.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create audit log entry",
			slog.String("error", err.Error()),
			slog.String("task_id", entry.TaskID.String()))
		return MapError(err)
	}

	log.Debug("audit log entry created",
		slog.String("task_id", entry.TaskID.String()),
		slog.String("type", string(entry.Type)))
	return nil
}

// ListByTask implements store.AuditLogStore.ListByTask
func (s *PostgresAuditLogStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	query := `
		SELECT l.id, l.task_id, l.type, l.content, l.user_id,
			COALESCE(NULLIF(u.username, ''), l.user_id::text), l.created_at
		FROM task_logs l
		LEFT JOIN users u ON u.id = l.user_id
		WHERE l.task_id = $1
		ORDER BY l.created_at DESC, l.seq DESC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list audit log",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	entries := []*domain.AuditLogEntry{}
	for rows.Next() {
		var (
			e       domain.AuditLogEntry
			logType string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &logType, &e.Content, &e.UserID, &e.AuthorName, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.LogType(logType)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return entries, nil
}
