package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the application role stored in profiles.role
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	RoleOwner      Role = "owner"
)

// PrivilegedRoles is the set of roles allowed to use the admin console.
// An empty role (no profile row or a null column) is never privileged.
var PrivilegedRoles = map[Role]struct{}{
	RoleAdmin:      {},
	RoleSuperAdmin: {},
	RoleOwner:      {},
}

// IsPrivileged reports whether the role passes the admin gate
func (r Role) IsPrivileged() bool {
	_, ok := PrivilegedRoles[r]
	return ok
}

// Profile represents a row of the profiles table
type Profile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Role      *string   `json:"role" db:"role"`
	FullName  *string   `json:"full_name" db:"full_name"`
	Email     *string   `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Profile model
func (Profile) TableName() string {
	return "profiles"
}

// Principal is an authenticated caller. Role is always read from the
// caller's profile row, never from the request.
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

// IsPrivileged returns true if the principal holds a privileged role
func (p *Principal) IsPrivileged() bool {
	return p != nil && p.Role.IsPrivileged()
}
