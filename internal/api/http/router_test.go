package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/user-guard/internal/api/http/handlers"
	"github.com/spec-kit/user-guard/internal/auth"
	"github.com/spec-kit/user-guard/internal/config"
	"github.com/spec-kit/user-guard/internal/domain"
	"github.com/spec-kit/user-guard/internal/observability"
	"github.com/spec-kit/user-guard/internal/repository"
	apperrors "github.com/spec-kit/user-guard/pkg/util/errorutil"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Token string `json:"token"`
		User  struct {
			ID       string `json:"id"`
			Email    string `json:"email"`
			FullName string `json:"fullName"`
			Role     string `json:"role"`
		} `json:"user"`
	} `json:"data"`
}

type harness struct {
	t       *testing.T
	app     *fiber.App
	users   *repository.MemoryUserRepository
	metrics *observability.Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	h := &harness{
		t:       t,
		users:   repository.NewMemoryUserRepository(),
		metrics: observability.NewMetrics(),
	}
	h.app = NewApp(AppDeps{
		Config: &config.Config{
			App: config.AppConfig{Name: "test", APIPrefix: "/api", FrontendURL: "*"},
		},
		Logger:  zap.NewNop(),
		Metrics: h.metrics,
		Users:   h.users,
		Tokens:  tokens,
		Hasher:  auth.NewPasswordHasher(bcrypt.MinCost),
	})
	return h
}

func (h *harness) do(method, path, token string, body any) (int, envelope, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)

	var env envelope
	require.NoError(h.t, json.Unmarshal(raw, &env), string(raw))
	return resp.StatusCode, env, raw
}

func TestAuthScenario(t *testing.T) {
	h := newHarness(t)
	signup := map[string]string{"email": "a@x.com", "password": "secret1", "fullName": "A"}

	status, env, raw := h.do(http.MethodPost, "/api/auth/signup", "", signup)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, env.Success)
	assert.Equal(t, "User registered successfully", env.Message)
	assert.Equal(t, "user", env.Data.User.Role)
	assert.NotEmpty(t, env.Data.Token)
	assert.NotContains(t, string(raw), "password")

	status, env, _ = h.do(http.MethodPost, "/auth/signup", "", signup)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, "User already exists with this email", env.Message)

	status, env, _ = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", env.Message)

	status, env, _ = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful", env.Message)
	token := env.Data.Token
	require.NotEmpty(t, token)

	_, stripped, strippedRaw := h.do(http.MethodGet, "/auth/me", "Bearer "+token, nil)
	status, prefixed, prefixedRaw := h.do(http.MethodGet, "/api/auth/me", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@x.com", prefixed.Data.User.Email)
	assert.Equal(t, stripped.Data.User.ID, prefixed.Data.User.ID)
	assert.JSONEq(t, string(strippedRaw), string(prefixedRaw))

	status, env, _ = h.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authorized to access this route", env.Message)

	status, env, _ = h.do(http.MethodGet, "/auth/me", "Bearer garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authorized to access this route", env.Message)

	status, env, _ = h.do(http.MethodPost, "/auth/logout", "Bearer "+token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logged out successfully", env.Message)

	assert.Equal(t, int64(1), h.metrics.ErrorCount("/auth/me", http.MethodGet, apperrors.CodeInvalidToken))
	assert.Equal(t, int64(1), h.metrics.ErrorCount("/auth/me", http.MethodGet, apperrors.CodeNotAuthorized))
}

func TestSignupValidationResponses(t *testing.T) {
	h := newHarness(t)

	status, env, _ := h.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Please provide all required fields", env.Message)

	status, env, _ = h.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@x.com", "password": "123", "fullName": "A"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Password must be at least 6 characters long", env.Message)

	status, env, _ = h.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@x.com", "password": "密码", "fullName": "A"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Password must be at least 6 characters long", env.Message)

	status, _, _ = h.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "zh@x.com", "password": "密码密码密码", "fullName": "Z"})
	assert.Equal(t, http.StatusCreated, status)

	status, _, _ = h.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@x.com", "password": "secret1", "fullName": "A", "role": "superuser"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env, _ = h.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Please provide email and password", env.Message)
}

func TestRoleChangeVisibleOnNextRequest(t *testing.T) {
	h := newHarness(t)
	_, env, _ := h.do(http.MethodPost, "/auth/signup", "", map[string]string{"email": "a@x.com", "password": "secret1", "fullName": "A"})
	token := env.Data.Token

	require.NoError(t, h.users.SetRole(env.Data.User.ID, domain.RoleAdmin))

	status, me, _ := h.do(http.MethodGet, "/auth/me", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", me.Data.User.Role)

	h.users.Delete(env.Data.User.ID)
	status, _, _ = h.do(http.MethodGet, "/auth/me", "Bearer "+token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestNotFoundAndHealth(t *testing.T) {
	h := newHarness(t)

	status, env, _ := h.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Route not found", env.Message)

	status, env, _ = h.do(http.MethodGet, "/auth/login", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Route not found", env.Message)

	status, env, _ = h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Server is running", env.Message)
}

func TestReadyReportsFailingCheck(t *testing.T) {
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)
	app := NewApp(AppDeps{
		Config: &config.Config{App: config.AppConfig{Name: "test"}},
		Users:  repository.NewMemoryUserRepository(),
		Tokens: tokens,
		Checks: map[string]handlers.Check{
			"store": func(context.Context) error { return assert.AnError },
		},
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), assert.AnError.Error())
}

func TestAdminOnlyRoute(t *testing.T) {
	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)
	users := repository.NewMemoryUserRepository()
	user := &domain.User{Email: "a@x.com", PasswordHash: "h", FullName: "A", Role: domain.RoleUser}
	require.NoError(t, users.Create(context.Background(), user))
	token, _, err := tokens.Issue(user.ID)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop(), nil)})
	mw := auth.NewAuthMiddleware(tokens, users, nil)
	for _, base := range BasePaths("/api", "/admin") {
		app.Get(base+"/stats", append(Protected(mw, domain.RoleAdmin), func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"success": true})
		})...)
	}

	get := func(path string) (int, string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(raw)
	}

	status, body := get("/admin/stats")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, body, "User role user is not authorized to access this route")

	require.NoError(t, users.SetRole(user.ID, domain.RoleAdmin))
	status, _ = get("/api/admin/stats")
	assert.Equal(t, http.StatusOK, status)
}
