package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
)

// UserStore resolves users. Account management lives outside this service;
// Create exists for provisioning and tests.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error

	// GetByID returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// TeamStore resolves teams and their members.
type TeamStore interface {
	Create(ctx context.Context, team *domain.Team) error

	// GetByID returns ErrTeamNotFound if the team does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error)
}
