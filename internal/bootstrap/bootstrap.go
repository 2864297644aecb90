package bootstrap

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/user-guard/internal/api/http"
	"github.com/spec-kit/user-guard/internal/api/http/handlers"
	"github.com/spec-kit/user-guard/internal/auth"
	"github.com/spec-kit/user-guard/internal/config"
	"github.com/spec-kit/user-guard/internal/events"
	"github.com/spec-kit/user-guard/internal/observability"
	"github.com/spec-kit/user-guard/internal/persistence"
	"github.com/spec-kit/user-guard/internal/ratelimit"
	"github.com/spec-kit/user-guard/internal/service"
	"github.com/spec-kit/user-guard/internal/worker"
)

// Runtime holds the wired application and the resources it owns.
type Runtime struct {
	App       *fiber.App
	Store     *persistence.Store
	Redis     *persistence.Redis
	Metrics   *observability.Metrics
	forwarder *worker.EventForwarder
}

// Build wires every component from cfg. It fails only on configuration
// errors; the store connects lazily on first use.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	store := persistence.NewStore(cfg.Store, logger)
	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	metrics := observability.NewMetrics()

	dispatcher := events.NewInMemoryDispatcher()
	var (
		sink      service.EventSink
		forwarder *worker.EventForwarder
	)
	if cfg.Events.AMQPURL != "" {
		forwarder = worker.NewEventForwarder(events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, logger), logger, 0)
		sink = forwarder
	}
	worker.StartAuditWorker(ctx, service.NewAuditService(dispatcher, logger, sink), forwarder)

	checks := map[string]handlers.Check{"store": store.Ping}
	if rdb.Client != nil {
		checks["redis"] = rdb.Ping
	}

	app := httptransport.NewApp(httptransport.AppDeps{
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics,
		Users:      store.Users(),
		Tokens:     tokens,
		Hasher:     auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		Dispatcher: dispatcher,
		Limiter:    ratelimit.NewLimiter(cfg.RateLimit, rdb.Client, logger),
		Checks:     checks,
	})

	return &Runtime{
		App:       app,
		Store:     store,
		Redis:     rdb,
		Metrics:   metrics,
		forwarder: forwarder,
	}, nil
}

// Close flushes pending events and releases connections.
func (r *Runtime) Close() {
	if r.forwarder != nil {
		r.forwarder.Stop()
	}
	r.Store.Close()
	r.Redis.Close()
}
