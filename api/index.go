// Package handler is the serverless entry point. The platform strips the
// /api prefix, so routes arrive as /auth/*; the app serves both forms.
package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/spec-kit/user-guard/internal/bootstrap"
	"github.com/spec-kit/user-guard/internal/config"
	"github.com/spec-kit/user-guard/internal/observability"
)

var (
	once    sync.Once
	serve   http.HandlerFunc
	initErr error

	// logger starts as a production JSON logger so config failures are
	// still reported; build swaps in the configured one.
	logger    = defaultLogger()
	newLogger = defaultNewLogger
)

var defaultNewLogger = observability.NewLogger

func defaultLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func build() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	if l, err := newLogger(cfg.Logger); err == nil {
		logger = l
	} else {
		logger.Warn("invalid logger config; keeping default", zap.Error(err))
	}
	rt, err := bootstrap.Build(context.Background(), cfg, logger)
	if err != nil {
		initErr = err
		return
	}
	serve = adaptor.FiberApp(rt.App)
}

// Handler serves one function invocation.
func Handler(w http.ResponseWriter, r *http.Request) {
	once.Do(build)
	if initErr != nil {
		logger.Error("handler unavailable", zap.String("path", r.URL.Path), zap.Error(initErr))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Server configuration error"}`))
		return
	}
	serve(w, r)
}
