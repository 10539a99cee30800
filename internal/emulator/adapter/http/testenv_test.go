package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"linkvault/internal/emulator/adapter/persistence/redis"
	"linkvault/internal/emulator/adapter/security"
	"linkvault/internal/emulator/config"
	"linkvault/internal/emulator/eventbus"
	"linkvault/internal/emulator/logger"
	"linkvault/internal/emulator/policy"
	"linkvault/internal/emulator/realtime"
)

const testAnonKey = "test-anon-key"

// testEnv assembles the full handler stack over an in-process Redis so tests
// exercise the same wiring the binary runs.
type testEnv struct {
	app    *fiber.App
	store  *redis.Store
	tokens *security.TokenService
	bus    *eventbus.Bus
	hub    *realtime.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := redis.NewStore(client, 24*time.Hour)

	tokens, err := security.NewTokenService(testAuthConfig())
	require.NoError(t, err)
	// Minimum bcrypt cost keeps the suite fast.
	hasher := security.NewPasswordHasher(4)

	engine, err := policy.NewEngine()
	require.NoError(t, err)
	require.NoError(t, engine.Register(policy.BookmarksTable, policy.BookmarkRules()))

	log := logger.NewNop()
	bus := eventbus.NewBus(log)
	hub := realtime.NewHub(log)

	mw := NewMiddleware(tokens, testAnonKey, log)
	app := fiber.New()
	app.Use(mw.RequestID(), mw.RequestLogger(), mw.Recover(), mw.CORS())

	NewAuthHandler(store, hasher, tokens, log).RegisterRoutes(app, mw)
	NewRestHandler(store, engine, bus, log).RegisterRoutes(app, mw)
	NewWSHandler(tokens, hub, log).RegisterRoutes(app)

	return &testEnv{app: app, store: store, tokens: tokens, bus: bus, hub: hub}
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "linkvault-test",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		BcryptCost:      4,
	}
}

// doRequest runs one request through the app and returns the status code and
// raw body. The anon key header is always present; tests override it through
// headers to probe the key check itself.
func (e *testEnv) doRequest(t *testing.T, method, target, token string, body interface{}, headers map[string]string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("apikey", testAnonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, payload
}

func (e *testEnv) signUp(t *testing.T, email, password string) sessionResponse {
	t.Helper()
	status, body := e.doRequest(t, fiber.MethodPost, "/auth/v1/signup", "",
		map[string]string{"email": email, "password": password}, nil)
	require.Equal(t, fiber.StatusOK, status, "signup response: %s", body)

	var sess sessionResponse
	mustDecode(t, body, &sess)
	return sess
}

func mustDecode(t *testing.T, data []byte, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, out), "body: %s", data)
}
