package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes. Several 401 codes share one client-facing message; the code is
// kept for logs and metrics only.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeNotAuthorized      = "NOT_AUTHORIZED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeNotAuthenticated   = "NOT_AUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeRouteNotFound      = "ROUTE_NOT_FOUND"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

const unauthorizedMessage = "Not authorized to access this route"

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}

// WithCause attaches the underlying error for server-side logging.
func (e *DomainError) WithCause(err error) *DomainError {
	e.Err = err
	return e
}

func NewValidationError(message string) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest)
}

func NewDuplicateEmail() error {
	return NewDomainError(CodeDuplicateEmail, "User already exists with this email", http.StatusBadRequest)
}

// NewInvalidCredentials is shared by unknown-email and wrong-password paths.
func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func NewNotAuthorized() error {
	return NewDomainError(CodeNotAuthorized, unauthorizedMessage, http.StatusUnauthorized)
}

func NewInvalidToken(cause error) error {
	return NewDomainError(CodeInvalidToken, unauthorizedMessage, http.StatusUnauthorized).WithCause(cause)
}

func NewTokenExpired(cause error) error {
	return NewDomainError(CodeTokenExpired, unauthorizedMessage, http.StatusUnauthorized).WithCause(cause)
}

// NewUnauthorizedUserNotFound is the middleware variant: the token named a user
// that no longer exists, reported to the client like any other bad token.
func NewUnauthorizedUserNotFound() error {
	return NewDomainError(CodeUserNotFound, unauthorizedMessage, http.StatusUnauthorized)
}

func NewNotAuthenticated() error {
	return NewDomainError(CodeNotAuthenticated, "Not authenticated", http.StatusUnauthorized)
}

func NewForbidden(role string) error {
	if role == "" {
		role = "unknown"
	}
	return NewDomainError(CodeForbidden,
		fmt.Sprintf("User role %s is not authorized to access this route", role),
		http.StatusForbidden)
}

func NewUserNotFound() error {
	return NewDomainError(CodeUserNotFound, "User not found", http.StatusNotFound)
}

func NewRouteNotFound() error {
	return NewDomainError(CodeRouteNotFound, "Route not found", http.StatusNotFound)
}

func NewTooManyRequests() error {
	return NewDomainError(CodeTooManyRequests, "Too many requests, please try again later", http.StatusTooManyRequests)
}

func NewConfigurationError(cause error) error {
	return NewDomainError(CodeConfiguration, "Server configuration error", http.StatusInternalServerError).WithCause(cause)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch fiberErr.Code {
		case http.StatusNotFound:
			return NewRouteNotFound().(*DomainError)
		case http.StatusMethodNotAllowed:
			return NewDomainError(CodeRouteNotFound, "Route not found", http.StatusMethodNotAllowed)
		}
		if fiberErr.Code < http.StatusInternalServerError {
			return NewDomainError(CodeValidation, fiberErr.Message, fiberErr.Code)
		}
	}
	return NewInternalError(err).(*DomainError)
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
