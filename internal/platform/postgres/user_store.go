package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/platform/logger"
	"github.com/phrazzld/taskhive/internal/store"
)

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the UserStore interface.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

// Create implements store.UserStore.Create
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		return fmt.Errorf("%w: user ID cannot be empty", store.ErrInvalidEntity)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username) VALUES ($1, $2)`, user.ID, user.Username)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *PostgresUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, MapError(err)
	}
	return &user, nil
}

// PostgresTeamStore implements store.TeamStore.
type PostgresTeamStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTeamStore creates a new PostgreSQL team store.
func NewPostgresTeamStore(db store.DBTX, logger *slog.Logger) *PostgresTeamStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTeamStore{
		db:     db,
		logger: logger.With(slog.String("component", "team_store")),
	}
}

var _ store.TeamStore = (*PostgresTeamStore)(nil)

// Create implements store.TeamStore.Create. Run it inside a transaction:
// the team and its member rows are separate statements.
func (s *PostgresTeamStore) Create(ctx context.Context, team *domain.Team) error {
	if team.ID == uuid.Nil {
		return fmt.Errorf("%w: team ID cannot be empty", store.ErrInvalidEntity)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teams (id, name, creator_id) VALUES ($1, $2, $3)`,
		team.ID, team.Name, team.CreatorID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to create team",
			slog.String("error", err.Error()),
			slog.String("team_id", team.ID.String()))
		return MapError(err)
	}
	for _, memberID := range team.MemberIDs {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			team.ID, memberID)
		if err != nil {
			return MapError(err)
		}
	}
	return nil
}

// GetByID implements store.TeamStore.GetByID
func (s *PostgresTeamStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	var (
		team    domain.Team
		members string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, t.creator_id,
			COALESCE((SELECT string_agg(m.user_id::text, ',' ORDER BY m.user_id)
				FROM team_members m WHERE m.team_id = t.id), '')
		FROM teams t
		WHERE t.id = $1`, id,
	).Scan(&team.ID, &team.Name, &team.CreatorID, &members)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTeamNotFound
		}
		return nil, MapError(err)
	}
	if team.MemberIDs, err = parseIDList(members); err != nil {
		return nil, err
	}
	return &team, nil
}
