package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-guard/internal/domain"
	apperrors "github.com/spec-kit/user-guard/pkg/util/errorutil"
)

// Authorize allows the request through when the authenticated caller holds
// one of roles. An empty list admits any authenticated caller.
func Authorize(roles ...domain.Role) fiber.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewNotAuthenticated()
		}
		if len(allowed) == 0 {
			return c.Next()
		}
		if _, exists := allowed[principal.Role]; !exists {
			return apperrors.NewForbidden(string(principal.Role))
		}
		return c.Next()
	}
}
