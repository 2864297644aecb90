package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-guard/internal/api/http/handlers"
	"github.com/spec-kit/user-guard/internal/auth"
	"github.com/spec-kit/user-guard/internal/domain"
	"github.com/spec-kit/user-guard/internal/ratelimit"
	apperrors "github.com/spec-kit/user-guard/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	// APIPrefix is the segment a gateway strips before forwarding, e.g. "/api".
	APIPrefix      string
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
	Limiter        *ratelimit.Limiter
}

// endpoint is one logical route; it is mounted under every base path.
type endpoint struct {
	name      string
	method    string
	path      string
	protected bool
	limited   bool
	roles     []domain.Role
	handler   fiber.Handler
}

func authEndpoints(h *handlers.AuthHandler) []endpoint {
	return []endpoint{
		{name: "signup", method: fiber.MethodPost, path: "/signup", limited: true, handler: h.Signup},
		{name: "login", method: fiber.MethodPost, path: "/login", limited: true, handler: h.Login},
		{name: "me", method: fiber.MethodGet, path: "/me", protected: true, handler: h.Me},
		{name: "logout", method: fiber.MethodPost, path: "/logout", protected: true, handler: h.Logout},
	}
}

// BasePaths returns the path roots a route is served under: the bare root a
// path-stripping gateway forwards to, and the same root behind prefix.
func BasePaths(prefix, root string) []string {
	if prefix == "" {
		return []string{root}
	}
	return []string{root, prefix + root}
}

// Protected returns the handler chain guarding a route: authentication,
// then the role gate.
func Protected(mw *auth.AuthMiddleware, roles ...domain.Role) []fiber.Handler {
	return []fiber.Handler{mw.Handle, auth.Authorize(roles...)}
}

// RegisterRoutes wires HTTP routes. Every auth endpoint answers identically
// on /auth/* and <prefix>/auth/*.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	for _, base := range BasePaths(cfg.APIPrefix, "/health") {
		app.Get(base, cfg.Health.Health)
		app.Get(base+"/live", cfg.Health.Live)
		app.Get(base+"/ready", cfg.Health.Ready)
	}

	endpoints := authEndpoints(cfg.Auth)
	for _, base := range BasePaths(cfg.APIPrefix, "/auth") {
		for _, ep := range endpoints {
			chain := make([]fiber.Handler, 0, 4)
			if ep.limited {
				chain = append(chain, cfg.Limiter.Handler(ep.name))
			}
			if ep.protected {
				chain = append(chain, Protected(cfg.AuthMiddleware, ep.roles...)...)
			}
			chain = append(chain, ep.handler)
			app.Add(ep.method, base+ep.path, chain...)
		}
	}
}

// RegisterNotFound must run after every other route.
func RegisterNotFound(app *fiber.App) {
	app.Use(func(c *fiber.Ctx) error {
		return apperrors.NewRouteNotFound()
	})
}
