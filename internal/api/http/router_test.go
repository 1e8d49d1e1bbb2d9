package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/workforce-auth/internal/api/http/handlers"
	"github.com/spec-kit/workforce-auth/internal/auth"
	"github.com/spec-kit/workforce-auth/internal/config"
	"github.com/spec-kit/workforce-auth/internal/domain"
	"github.com/spec-kit/workforce-auth/internal/events"
	"github.com/spec-kit/workforce-auth/internal/observability"
	"github.com/spec-kit/workforce-auth/internal/repository"
	"github.com/spec-kit/workforce-auth/internal/service"
	"github.com/spec-kit/workforce-auth/internal/worker"
)

const (
	commonSecret = "services-common-secret"
	managerID    = "5b0d7c4e-8a4a-4b57-9c1e-1f2d3c4b5a69"
	developerID  = "9e3f0a21-6c77-4d0b-8f35-0b6a7e2c1d44"
	password     = "hunter22"
)

type memoryUsers struct {
	mu      sync.Mutex
	users   map[string]domain.IdentitySnapshot
	hash    string
	lookups int
}

func (m *memoryUsers) LookupByID(_ context.Context, id string) (*domain.IdentitySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *memoryUsers) GetCredentialsByEmail(_ context.Context, email string) (*domain.UserCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &domain.UserCredentials{Identity: u, PasswordHash: m.hash}, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memoryUsers) UpdateStatus(_ context.Context, id string, status domain.UserStatus) (*domain.IdentitySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Status = status
	m.users[id] = u
	return &u, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testServer struct {
	app     *fiber.App
	users   *memoryUsers
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, redisPing error) *testServer {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	users := &memoryUsers{
		hash: string(hash),
		users: map[string]domain.IdentitySnapshot{
			managerID:   {ID: managerID, Email: "mira@example.com", Status: domain.UserStatusActive, Position: domain.PositionManager},
			developerID: {ID: developerID, Email: "dev@example.com", Status: domain.UserStatusActive, Position: domain.PositionDeveloper},
		},
	}

	authCfg := config.AuthConfig{
		UserJWTSecret:           "user-secret",
		ServiceJWTSecret:        "service-secret",
		ServicesCommonSecret:    commonSecret,
		Algorithm:               "HS256",
		UserTokenTTLMinutes:     60,
		ServiceTokenTTLMinutes:  60,
		IdentityCacheTTLSeconds: 3600,
		BcryptCost:              bcrypt.MinCost,
	}
	codec, err := auth.NewTokenCodec(authCfg)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := repository.NewIdentityCache(client, authCfg.IdentityCacheTTL())

	identifier := auth.NewIdentifier(auth.IdentifierDeps{
		Codec:         codec,
		Cache:         cache,
		Directory:     users,
		CacheTTL:      authCfg.IdentityCacheTTL(),
		ServiceSecret: commonSecret,
	})
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartIdentityInvalidation(dispatcher, identifier, zap.NewNop())

	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		APIPrefix: "/api/v1",
		Health:    handlers.NewHealthHandler("workforce-auth", "test", pinger{}, pinger{err: redisPing}),
		Tokens: handlers.NewTokenHandler(service.NewAuthService(service.AuthDependencies{
			UserRepo:      users,
			Codec:         codec,
			ServiceSecret: commonSecret,
			BcryptCost:    bcrypt.MinCost,
		})),
		Users: handlers.NewUsersHandler(service.NewUserService(users, dispatcher, nil)),
		Guard: auth.NewAccessGuard(identifier, nil),
	})

	return &testServer{app: app, users: users, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, email string) string {
	t.Helper()
	status, body := s.do(t, nethttp.MethodPost, "/api/v1/token_user", `{"email":"`+email+`","password":"`+password+`"}`, nil)
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.Equal(t, "Bearer", body["token_type"])
	return body["access_token"].(string)
}

func bearer(token string) map[string]string {
	return map[string]string{auth.UserAuthHeader: "Bearer " + token}
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestRoutes_LoginAndMe(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.login(t, "mira@example.com")

	status, body := s.do(t, nethttp.MethodGet, "/api/v1/users/me", "", bearer(token))
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "mira@example.com", body["data"].(map[string]any)["email"])
}

func TestRoutes_LoginRejected(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, nethttp.MethodPost, "/api/v1/token_user", `{"email":"mira@example.com","password":"nope"}`, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(body))

	status, body = s.do(t, nethttp.MethodPost, "/api/v1/token_user", `{"email":"not-an-email"}`, nil)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestRoutes_SelfAccessAndRoles(t *testing.T) {
	s := newTestServer(t, nil)
	devToken := s.login(t, "dev@example.com")
	managerToken := s.login(t, "mira@example.com")

	status, body := s.do(t, nethttp.MethodGet, "/api/v1/users/"+managerID, "", bearer(devToken))
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "INSUFFICIENT_ROLE", errorCode(body))

	status, _ = s.do(t, nethttp.MethodGet, "/api/v1/users/"+developerID, "", bearer(devToken))
	assert.Equal(t, nethttp.StatusOK, status)

	status, _ = s.do(t, nethttp.MethodGet, "/api/v1/users/"+developerID, "", bearer(managerToken))
	assert.Equal(t, nethttp.StatusOK, status)

	// self-access is not granted for status changes
	status, _ = s.do(t, nethttp.MethodPatch, "/api/v1/users/"+developerID+"/status", `{"status":"inactive"}`, bearer(devToken))
	assert.Equal(t, nethttp.StatusForbidden, status)

	assert.Equal(t, int64(2), s.metrics.ErrorCount("INSUFFICIENT_ROLE"))
}

func TestRoutes_ServiceCaller(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, nethttp.MethodPost, "/api/v1/token_service", "", map[string]string{auth.ServiceSecretHeader: commonSecret})
	require.Equal(t, nethttp.StatusOK, status)
	svcToken := body["access_token"].(string)

	lookups := s.users.lookups
	status, _ = s.do(t, nethttp.MethodGet, "/api/v1/users/"+managerID, "", map[string]string{auth.ServiceAuthHeader: "Bearer " + svcToken})
	assert.Equal(t, nethttp.StatusOK, status)
	// one lookup by the handler, none by the guard
	assert.Equal(t, lookups+1, s.users.lookups)

	status, body = s.do(t, nethttp.MethodGet, "/api/v1/users/me", "", map[string]string{auth.ServiceAuthHeader: "Bearer " + svcToken})
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "INSUFFICIENT_ROLE", errorCode(body))

	status, body = s.do(t, nethttp.MethodPost, "/api/v1/token_service", "", map[string]string{auth.ServiceSecretHeader: "guess"})
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "INVALID_SERVICE_CREDENTIAL", errorCode(body))
}

func TestRoutes_StatusChangeEvictsCachedIdentity(t *testing.T) {
	s := newTestServer(t, nil)
	devToken := s.login(t, "dev@example.com")
	managerToken := s.login(t, "mira@example.com")

	status, _ := s.do(t, nethttp.MethodGet, "/api/v1/users/me", "", bearer(devToken))
	require.Equal(t, nethttp.StatusOK, status)

	status, body := s.do(t, nethttp.MethodPatch, "/api/v1/users/"+developerID+"/status", `{"status":"fired"}`, bearer(managerToken))
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.Equal(t, "fired", body["data"].(map[string]any)["status"])

	status, body = s.do(t, nethttp.MethodGet, "/api/v1/users/me", "", bearer(devToken))
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "INSUFFICIENT_ROLE", errorCode(body))
}

func TestRoutes_StatusChangeWithUppercaseIDEvictsCachedIdentity(t *testing.T) {
	s := newTestServer(t, nil)
	devToken := s.login(t, "dev@example.com")
	managerToken := s.login(t, "mira@example.com")

	status, _ := s.do(t, nethttp.MethodGet, "/api/v1/users/me", "", bearer(devToken))
	require.Equal(t, nethttp.StatusOK, status)

	status, body := s.do(t, nethttp.MethodPatch, "/api/v1/users/"+strings.ToUpper(developerID)+"/status", `{"status":"fired"}`, bearer(managerToken))
	require.Equal(t, nethttp.StatusOK, status, body)

	status, body = s.do(t, nethttp.MethodGet, "/api/v1/users/me", "", bearer(devToken))
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "INSUFFICIENT_ROLE", errorCode(body))
}

func TestRoutes_NonUUIDUserIDIsNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	managerToken := s.login(t, "mira@example.com")

	status, body := s.do(t, nethttp.MethodGet, "/api/v1/users/abc", "", bearer(managerToken))
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
	assert.Zero(t, s.metrics.ErrorCount("DEPENDENCY_UNAVAILABLE"))
}

func TestRoutes_AuthenticationFailures(t *testing.T) {
	s := newTestServer(t, nil)

	cases := map[string]struct {
		headers map[string]string
		code    string
	}{
		"no credential":   {headers: nil, code: "NO_CREDENTIAL"},
		"scheme only":     {headers: map[string]string{auth.UserAuthHeader: "Bearer"}, code: "MALFORMED_HEADER"},
		"garbage token":   {headers: map[string]string{auth.UserAuthHeader: "Bearer abc"}, code: "MALFORMED_TOKEN"},
		"wrong auth type": {headers: map[string]string{auth.UserAuthHeader: "Basic Zm9vOmJhcg=="}, code: "MALFORMED_HEADER"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			status, body := s.do(t, nethttp.MethodGet, "/api/v1/users/me", "", tc.headers)
			assert.Equal(t, nethttp.StatusUnauthorized, status)
			assert.Equal(t, tc.code, errorCode(body))
		})
	}
}

func TestRoutes_Health(t *testing.T) {
	status, body := newTestServer(t, nil).do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, body = newTestServer(t, errors.New("connection refused")).do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))

	status, _ = newTestServer(t, nil).do(t, nethttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestErrorHandlingMiddleware_RecoversPanics(t *testing.T) {
	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	app.Get("/boom", func(*fiber.Ctx) error { panic("boom") })

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int64(1), metrics.ErrorCount("INTERNAL_ERROR"))
}
