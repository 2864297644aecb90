package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/user-guard/internal/config"
)

func TestHandlerReportsConfigurationErrorThroughLogger(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "memory")

	core, logs := observer.New(zap.InfoLevel)
	newLogger = func(config.LoggerConfig) (*zap.Logger, error) { return zap.New(core), nil }
	t.Cleanup(func() { newLogger = defaultNewLogger })

	rec := httptest.NewRecorder()
	Handler(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"message":"Server configuration error"}`, string(body))

	entries := logs.FilterMessage("handler unavailable").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/auth/login", entries[0].ContextMap()["path"])
	assert.ErrorIs(t, initErr, config.ErrMissingJWTSecret)
}

func TestDefaultLoggerIsUsable(t *testing.T) {
	assert.NotNil(t, defaultLogger())
}
