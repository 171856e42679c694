package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhive/internal/domain"
	"github.com/phrazzld/taskhive/internal/store"
)

// UserStore implements store.UserStore in memory.
type UserStore struct {
	r *repo
}

var _ store.UserStore = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		return fmt.Errorf("%w: user ID cannot be empty", store.ErrInvalidEntity)
	}
	return s.r.write(ctx, func(st *state) error {
		if _, ok := st.users[user.ID]; ok {
			return store.ErrDuplicate
		}
		cp := *user
		st.users[user.ID] = &cp
		return nil
	})
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var out *domain.User
	err := s.r.read(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrUserNotFound
		}
		cp := *u
		out = &cp
		return nil
	})
	return out, err
}

// TeamStore implements store.TeamStore in memory.
type TeamStore struct {
	r *repo
}

var _ store.TeamStore = (*TeamStore)(nil)

func (s *TeamStore) Create(ctx context.Context, team *domain.Team) error {
	if team.ID == uuid.Nil {
		return fmt.Errorf("%w: team ID cannot be empty", store.ErrInvalidEntity)
	}
	return s.r.write(ctx, func(st *state) error {
		if _, ok := st.teams[team.ID]; ok {
			return store.ErrDuplicate
		}
		if _, ok := st.users[team.CreatorID]; !ok {
			return fmt.Errorf("%w: creator %s does not exist", store.ErrInvalidEntity, team.CreatorID)
		}
		for _, id := range team.MemberIDs {
			if _, ok := st.users[id]; !ok {
				return fmt.Errorf("%w: member %s does not exist", store.ErrInvalidEntity, id)
			}
		}
		cp := *team
		cp.MemberIDs = append([]uuid.UUID(nil), team.MemberIDs...)
		st.teams[team.ID] = &cp
		return nil
	})
}

func (s *TeamStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Team, error) {
	var out *domain.Team
	err := s.r.read(func(st *state) error {
		t, ok := st.teams[id]
		if !ok {
			return store.ErrTeamNotFound
		}
		cp := *t
		cp.MemberIDs = append([]uuid.UUID(nil), t.MemberIDs...)
		out = &cp
		return nil
	})
	return out, err
}
