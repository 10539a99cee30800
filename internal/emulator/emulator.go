// Package emulator assembles the local Supabase stand-in: a Redis-backed
// store, GoTrue-style auth endpoints, a PostgREST-style table endpoint and a
// WebSocket change feed, all served from one Fiber app.
package emulator

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"

	emulatorhttp "linkvault/internal/emulator/adapter/http"
	"linkvault/internal/emulator/adapter/persistence/redis"
	"linkvault/internal/emulator/adapter/security"
	"linkvault/internal/emulator/config"
	"linkvault/internal/emulator/domain/model"
	"linkvault/internal/emulator/eventbus"
	"linkvault/internal/emulator/logger"
	"linkvault/internal/emulator/policy"
	"linkvault/internal/emulator/realtime"
)

// Module wires the emulator's components together.
type Module struct {
	store    *redis.Store
	tokens   *security.TokenService
	hasher   *security.PasswordHasher
	policies *policy.Engine
	bus      *eventbus.Bus
	hub      *realtime.Hub

	middleware  *emulatorhttp.Middleware
	authHandler *emulatorhttp.AuthHandler
	restHandler *emulatorhttp.RestHandler
	wsHandler   *emulatorhttp.WSHandler

	log logger.Logger
}

// NewModule builds the emulator on top of an established Redis connection.
// The caller keeps ownership of the client and closes it on shutdown.
func NewModule(client *goredis.Client, cfg *config.Config, log logger.Logger) (*Module, error) {
	store := redis.NewStore(client, cfg.Auth.RefreshTokenTTL)

	tokens, err := security.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}
	hasher := security.NewPasswordHasher(cfg.Auth.BcryptCost)

	policies, err := policy.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if err := policies.Register(policy.BookmarksTable, policy.BookmarkRules()); err != nil {
		return nil, fmt.Errorf("failed to register bookmark policies: %w", err)
	}

	bus := eventbus.NewBus(log)
	hub := realtime.NewHub(log)

	module := &Module{
		store:       store,
		tokens:      tokens,
		hasher:      hasher,
		policies:    policies,
		bus:         bus,
		hub:         hub,
		middleware:  emulatorhttp.NewMiddleware(tokens, cfg.AnonKey, log),
		authHandler: emulatorhttp.NewAuthHandler(store, hasher, tokens, log),
		restHandler: emulatorhttp.NewRestHandler(store, policies, bus, log),
		wsHandler:   emulatorhttp.NewWSHandler(tokens, hub, log),
		log:         log,
	}
	module.connectChangeFeed()

	return module, nil
}

// connectChangeFeed bridges committed table changes into the realtime hub.
// Registered before any route serves traffic, so no change can slip past the
// feed.
func (m *Module) connectChangeFeed() {
	m.bus.Subscribe(policy.BookmarksTable, func(ctx context.Context, event model.ChangeEvent) error {
		return m.hub.Publish(ctx, policy.BookmarksTable, event)
	})
}

// RegisterRoutes mounts the app-wide middleware and all three endpoint
// groups on the router.
func (m *Module) RegisterRoutes(app *fiber.App) {
	app.Use(m.middleware.RequestID())
	app.Use(m.middleware.RequestLogger())
	app.Use(m.middleware.Recover())
	app.Use(m.middleware.CORS())

	m.authHandler.RegisterRoutes(app, m.middleware)
	m.restHandler.RegisterRoutes(app, m.middleware)
	m.wsHandler.RegisterRoutes(app)
}

// Store exposes the backing store for health checks.
func (m *Module) Store() *redis.Store {
	return m.store
}
