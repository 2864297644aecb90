package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/user-guard/internal/config"
)

// RateLimitClientName is what the rate limiter's connections report to
// CLIENT LIST.
const RateLimitClientName = "user-guard-ratelimit"

// Redis holds the client used by the credential endpoint rate limiter.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects the rate limiter's client. Without an address the handle
// has a nil client and login/signup are not throttled. An unreachable server
// is logged but not fatal; the limiter fails open per request.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not provided; credential rate limiting disabled")
		return &Redis{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: RateLimitClientName,
	})

	log := logger.With(zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("rate limiter cannot reach redis; requests will not be throttled until it recovers", zap.Error(err))
	} else {
		log.Info("rate limiter connected to redis")
	}

	return &Redis{Client: client}
}

func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping is the readiness check for the rate limiter backend.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("rate limiter redis not configured")
	}
	return r.Client.Ping(ctx).Err()
}
