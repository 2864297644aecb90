package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-guard/internal/domain"
	"github.com/spec-kit/user-guard/internal/repository"
	apperrors "github.com/spec-kit/user-guard/pkg/util/errorutil"
)

const principalKey = "auth_principal"

type principalCtxKey struct{}

// UserLookup is the part of the user store the middleware needs.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	users  UserLookup
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users UserLookup, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, users: users, logger: logger}
}

// Authenticate resolves the caller from an Authorization header value.
// The role on the returned principal is the one currently stored, never a
// value carried inside the token.
func (m *AuthMiddleware) Authenticate(ctx context.Context, header string) (*domain.Principal, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return nil, apperrors.NewNotAuthorized()
	}

	payload, err := m.tokens.Verify(raw)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingSecret):
			return nil, apperrors.NewConfigurationError(err)
		case errors.Is(err, ErrTokenExpired):
			return nil, apperrors.NewTokenExpired(err)
		default:
			return nil, apperrors.NewInvalidToken(err)
		}
	}

	user, err := m.users.GetByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorizedUserNotFound()
		}
		return nil, apperrors.NewInternalError(err)
	}

	return domain.PrincipalFromUser(user), nil
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
	if err != nil {
		var derr *apperrors.DomainError
		if errors.As(err, &derr) {
			m.logger.Warn("authentication rejected",
				zap.String("kind", derr.Code),
				zap.String("path", c.Path()),
				zap.Error(derr.Err),
			)
		}
		return err
	}

	SetPrincipal(c, principal)
	return c.Next()
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// SetPrincipal attaches the caller to both fiber locals and the user context.
func SetPrincipal(c *fiber.Ctx, principal *domain.Principal) {
	c.Locals(principalKey, principal)
	c.SetUserContext(context.WithValue(c.UserContext(), principalCtxKey{}, principal))
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	return principal, ok && principal != nil
}

// PrincipalFrom reads the caller from a context.Context set by the middleware.
func PrincipalFrom(ctx context.Context) (*domain.Principal, bool) {
	principal, ok := ctx.Value(principalCtxKey{}).(*domain.Principal)
	return principal, ok && principal != nil
}
