package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// AuditWriter appends history and comment entries to a task's audit log.
type AuditWriter struct {
	logger *slog.Logger
}

// NewAuditWriter creates an AuditWriter. If logger is nil, a default logger will be used.
func NewAuditWriter(logger *slog.Logger) *AuditWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditWriter{logger: logger.With(slog.String("component", "audit_writer"))}
}

// History appends a HISTORY entry authored by userID.
func (w *AuditWriter) History(
	ctx context.Context,
	logs store.AuditLogStore,
	taskID, userID uuid.UUID,
	content string,
	now time.Time,
) error {
	_, err := w.append(ctx, logs, taskID, userID, domain.LogTypeHistory, content, now)
	return err
}

// Comment appends a COMMENT entry authored by userID and returns it.
func (w *AuditWriter) Comment(
	ctx context.Context,
	logs store.AuditLogStore,
	taskID, userID uuid.UUID,
	content string,
	now time.Time,
) (*domain.AuditLogEntry, error) {
	return w.append(ctx, logs, taskID, userID, domain.LogTypeComment, content, now)
}

func (w *AuditWriter) append(
	ctx context.Context,
	logs store.AuditLogStore,
	taskID, userID uuid.UUID,
	logType domain.LogType,
	content string,
	now time.Time,
) (*domain.AuditLogEntry, error) {
	entry, err := domain.NewAuditLogEntry(taskID, userID, logType, content, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := logs.Create(ctx, entry); err != nil {
		logger.FromContextOrDefault(ctx, w.logger).Error("failed to append audit entry",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("type", string(logType)))
		return nil, err
	}
	return entry, nil
}

// Field diff messages.

func titleChangedMessage(from, to string) string {
	return fmt.Sprintf(`Changed title from "%s" to "%s"`, from, to)
}

func descriptionChangedMessage(from, to string) string {
	return fmt.Sprintf(`Changed description from "%s" to "%s"`, orEmpty(from), orEmpty(to))
}

func statusChangedMessage(from, to domain.TaskStatus) string {
	return fmt.Sprintf(`Changed status from "%s" to "%s"`, from, to)
}

func subtaskCreatedMessage(title string) string {
	return `Created subtask: "` + title + `"`
}

func subtaskDeletedMessage(title string) string {
	return `Deleted subtask: "` + title + `"`
}

// RecurringInstanceMessage is the history text written to a new recurrence instance.
func RecurringInstanceMessage(sourceID uuid.UUID) string {
	return "Created recurring instance of task " + sourceID.String()
}

func orEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}
