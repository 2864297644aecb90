package dto

import (
	"time"

	"github.com/spec-kit/user-guard/internal/domain"
)

// SignupRequest payload for new users.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserSummary is the public view of a user. The password hash never leaves
// the service.
type UserSummary struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"fullName"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// NewUserSummary maps a stored user to its public view.
func NewUserSummary(u *domain.User) UserSummary {
	summary := UserSummary{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     string(u.Role),
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		summary.CreatedAt = &created
	}
	if !u.UpdatedAt.IsZero() {
		updated := u.UpdatedAt
		summary.UpdatedAt = &updated
	}
	return summary
}

// AuthData is the data block of signup and login responses.
type AuthData struct {
	User  UserSummary `json:"user"`
	Token string      `json:"token"`
}

// UserData is the data block of the current-user response.
type UserData struct {
	User UserSummary `json:"user"`
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK wraps data in a success envelope.
func OK(message string, data any) Response {
	return Response{Success: true, Message: message, Data: data}
}

// Fail builds an error envelope.
func Fail(message string) Response {
	return Response{Success: false, Message: message}
}
