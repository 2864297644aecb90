package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/user-guard/internal/api/http/handlers"
	"github.com/spec-kit/user-guard/internal/auth"
	"github.com/spec-kit/user-guard/internal/config"
	"github.com/spec-kit/user-guard/internal/events"
	"github.com/spec-kit/user-guard/internal/observability"
	"github.com/spec-kit/user-guard/internal/ratelimit"
	"github.com/spec-kit/user-guard/internal/repository"
	"github.com/spec-kit/user-guard/internal/service"
)

// AppDeps is everything the HTTP surface needs. Users is usually the lazy
// store repository; tests pass an in-memory one.
type AppDeps struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Users      repository.UserRepository
	Tokens     *auth.TokenManager
	Hasher     *auth.PasswordHasher
	Dispatcher events.Dispatcher
	Limiter    *ratelimit.Limiter
	Checks     map[string]handlers.Check
}

// NewApp builds the fiber application with middleware and routes.
func NewApp(deps AppDeps) *fiber.App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger, deps.Metrics),
	})

	RegisterMiddlewares(app, MiddlewareConfig{
		Logger:      logger,
		Metrics:     deps.Metrics,
		Timeout:     cfg.App.RequestTimeout(),
		FrontendURL: cfg.App.FrontendURL,
	})

	authService := service.NewAuthService(service.AuthDependencies{
		Users:      deps.Users,
		Hasher:     deps.Hasher,
		Tokens:     deps.Tokens,
		Dispatcher: deps.Dispatcher,
		Logger:     logger,
	})

	RegisterRoutes(app, RouteConfig{
		APIPrefix:      cfg.App.APIPrefix,
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps.Checks),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(deps.Tokens, deps.Users, logger),
		Limiter:        deps.Limiter,
	})
	RegisterNotFound(app)

	return app
}
