package domain

import (
	"github.com/google/uuid"
)

// User is the subset of a directory user the task engine needs: an identity
// and a display name for audit messages.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// DisplayName returns the username, falling back to the ID when unknown.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Username == "" {
		return u.ID.String()
	}
	return u.Username
}

// Team is a named group of users. Tasks linked to a team are visible to its
// creator and members.
type Team struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	CreatorID uuid.UUID   `json:"creator_id"`
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// HasMember reports whether the user created or belongs to the team.
func (t *Team) HasMember(userID uuid.UUID) bool {
	if t.CreatorID == userID {
		return true
	}
	return containsID(t.MemberIDs, userID)
}
