package domain

import "time"

// TokenPayload is what a bearer token asserts. It carries identity only;
// role is looked up from the store on every request.
type TokenPayload struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID       string
	Email    string
	FullName string
	Role     Role
}

// PrincipalFromUser builds a Principal from the current stored record.
func PrincipalFromUser(u *User) *Principal {
	return &Principal{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}
