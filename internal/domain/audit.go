package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LogType distinguishes system-generated history from user comments.
type LogType string

// Audit log entry types
const (
	LogTypeHistory LogType = "HISTORY"
	LogTypeComment LogType = "COMMENT"
)

// Common validation errors for AuditLogEntry
var (
	ErrEmptyLogTaskID  = errors.New("audit log task ID cannot be empty")
	ErrEmptyLogUserID  = errors.New("audit log user ID cannot be empty")
	ErrEmptyLogContent = errors.New("audit log content cannot be empty")
	ErrInvalidLogType  = errors.New("invalid audit log type")
)

// AuditLogEntry is an immutable record attached to a task. Entries are
// never updated; they disappear only when their task is deleted.
type AuditLogEntry struct {
	ID      uuid.UUID `json:"id"`
	TaskID  uuid.UUID `json:"task_id"`
	Type    LogType   `json:"type"`
	Content string    `json:"content"`
	UserID  uuid.UUID `json:"user_id"`
	// AuthorName is resolved on read and is not persisted.
	AuthorName string    `json:"author_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAuditLogEntry creates a validated entry of the given type.
func NewAuditLogEntry(
	taskID, userID uuid.UUID,
	logType LogType,
	content string,
	now time.Time,
) (*AuditLogEntry, error) {
	entry := &AuditLogEntry{
		ID:        uuid.New(),
		TaskID:    taskID,
		Type:      logType,
		Content:   strings.TrimSpace(content),
		UserID:    userID,
		CreatedAt: now.UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

// Validate checks if the entry has valid data.
func (e *AuditLogEntry) Validate() error {
	if e.TaskID == uuid.Nil {
		return ErrEmptyLogTaskID
	}
	if e.UserID == uuid.Nil {
		return ErrEmptyLogUserID
	}
	if e.Content == "" {
		return ErrEmptyLogContent
	}
	if e.Type != LogTypeHistory && e.Type != LogTypeComment {
		return ErrInvalidLogType
	}
	return nil
}
