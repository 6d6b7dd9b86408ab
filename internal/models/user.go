package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's global role. Roles are strictly ordered; see Rank.
type Role string

const (
	RoleViewer     Role = "VIEWER"
	RoleVolunteer  Role = "VOLUNTEER"
	RoleEventLead  Role = "EVENT_LEAD"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// roleRanks is the single ordering table for global roles.
var roleRanks = map[Role]int{
	RoleViewer:     0,
	RoleVolunteer:  1,
	RoleEventLead:  2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// UnknownRoleRank is below every real role so unrecognized values never satisfy a requirement.
const UnknownRoleRank = -1

// Roles lists every role from lowest to highest.
func Roles() []Role {
	return []Role{RoleViewer, RoleVolunteer, RoleEventLead, RoleAdmin, RoleSuperAdmin}
}

// Rank returns the role's position in the hierarchy, or UnknownRoleRank.
func (r Role) Rank() int {
	if rank, ok := roleRanks[r]; ok {
		return rank
	}
	return UnknownRoleRank
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// User represents a platform user.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Password  string     `json:"-"`
	FullName  string     `json:"full_name"`
	Role      Role       `json:"role"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Active reports whether the user has not been soft-deleted.
func (u *User) Active() bool {
	return u != nil && u.DeletedAt == nil
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken is a persisted, rotatable refresh token.
type RefreshToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
}
