package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
)

// AuditLogStore persists append-only task history and comments.
// There is no update or delete; entries go away with their task.
type AuditLogStore interface {
	// Create appends an entry. Returns ErrInvalidEntity for invalid entries
	// or a missing task.
	Create(ctx context.Context, entry *domain.AuditLogEntry) error

	// ListByTask returns the task's entries newest first, with AuthorName
	// resolved from the user directory (the user ID when unknown).
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditLogEntry, error)
}
