package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/user-guard/internal/auth"
	"github.com/spec-kit/user-guard/internal/domain"
	"github.com/spec-kit/user-guard/internal/events"
	"github.com/spec-kit/user-guard/internal/repository"
	apperrors "github.com/spec-kit/user-guard/pkg/util/errorutil"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

// SignupInput carries the signup form as submitted.
type SignupInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	hasher     *auth.PasswordHasher
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	dummyHash  string
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	Users      repository.UserRepository
	Hasher     *auth.PasswordHasher
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.NewPasswordHasher(auth.DefaultBcryptCost)
	}
	// verified against on unknown emails
	dummy, err := hasher.Hash("user-guard-timing-placeholder")
	if err != nil {
		logger.Warn("unable to prepare placeholder hash", zap.Error(err))
	}
	return &AuthService{
		users:      deps.Users,
		hasher:     hasher,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		dummyHash:  dummy,
	}
}

// Signup validates input, stores a new user and issues its first token.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.FullName) == "" {
		return nil, apperrors.NewValidationError("Please provide all required fields")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, apperrors.NewValidationError("Password must be at least 6 characters long")
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return nil, apperrors.NewValidationError("Invalid role. Allowed roles: user, admin")
	}

	// Fast path only; the store's unique constraint decides races below.
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, apperrors.NewDuplicateEmail()
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, apperrors.NewValidationError("Password must be at most 72 bytes long")
		}
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewDuplicateEmail()
		}
		return nil, apperrors.NewInternalError(err)
	}

	if role == domain.RoleAdmin {
		s.logger.Warn("account registered with self-assigned admin role",
			zap.String("user_id", user.ID), zap.String("email", user.Email))
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	event := events.NewEvent(events.EventUserRegistered)
	event.UserID, event.Email, event.Role = user.ID, user.Email, string(user.Role)
	s.publish(ctx, event)
	return result, nil
}

// Login checks credentials. Unknown email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("Please provide email and password")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInternalError(err)
		}
		if s.dummyHash != "" {
			s.hasher.Verify(s.dummyHash, password)
		}
		s.loginFailed(ctx, email, events.ReasonUnknownEmail)
		return nil, apperrors.NewInvalidCredentials()
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		s.loginFailed(ctx, email, events.ReasonWrongPassword)
		return nil, apperrors.NewInvalidCredentials()
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	event := events.NewEvent(events.EventUserLoggedIn)
	event.UserID, event.Email = user.ID, user.Email
	s.publish(ctx, event)
	return result, nil
}

// CurrentUser re-reads the caller's record so role and name are current.
func (s *AuthService) CurrentUser(ctx context.Context, principal *domain.Principal) (*domain.User, error) {
	if principal == nil {
		return nil, apperrors.NewNotAuthorized()
	}
	user, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUserNotFound()
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// Logout acknowledges the request. Tokens are not tracked server-side, so
// the client discarding its token is the only invalidation.
func (s *AuthService) Logout(ctx context.Context, principal *domain.Principal) error {
	event := events.NewEvent(events.EventUserLoggedOut)
	if principal != nil {
		event.UserID, event.Email = principal.ID, principal.Email
	}
	s.publish(ctx, event)
	return nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokens.Issue(user.ID)
	if err != nil {
		if errors.Is(err, auth.ErrMissingSecret) {
			return nil, apperrors.NewConfigurationError(err)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, email, reason string) {
	event := events.NewEvent(events.EventUserLoginFailed)
	event.Email, event.Reason = email, reason
	s.publish(ctx, event)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
