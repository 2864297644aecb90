package domain

import "time"

// Role is the authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole maps signup input to a Role. Empty input defaults to RoleUser.
func ParseRole(raw string) (Role, bool) {
	if raw == "" {
		return RoleUser, true
	}
	role := Role(raw)
	return role, role.Valid()
}

// User is the stored identity record.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
