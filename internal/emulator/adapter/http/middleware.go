// Package http exposes the emulator over the wire dialects the linkvault
// clients already speak: a GoTrue-style identity endpoint, a PostgREST-style
// table endpoint and a WebSocket change feed.
package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"linkvault/internal/emulator/adapter/security"
	"linkvault/internal/emulator/logger"
	"linkvault/internal/shared/contextkeys"
	"linkvault/internal/shared/utils"
)

// Middleware carries the cross-cutting handlers the route groups share.
type Middleware struct {
	tokens  *security.TokenService
	anonKey string
	log     logger.Logger
}

func NewMiddleware(tokens *security.TokenService, anonKey string, log logger.Logger) *Middleware {
	return &Middleware{
		tokens:  tokens,
		anonKey: anonKey,
		log:     log.Named("http"),
	}
}

// RequestID tags every request so log lines can be correlated across
// handlers.
func (m *Middleware) RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     "X-Request-ID",
		ContextKey: string(contextkeys.RequestIDKey),
	})
}

// RequestLogger emits one line per request once the handler chain has run.
func (m *Middleware) RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		requestID, _ := c.Locals(string(contextkeys.RequestIDKey)).(string)
		m.log.Info("request completed",
			logger.String("method", c.Method()),
			logger.String("path", c.Path()),
			logger.Int("status", c.Response().StatusCode()),
			logger.Duration("duration", time.Since(start)),
			logger.String("requestID", requestID),
		)
		if err != nil {
			m.log.Error("request failed",
				logger.String("path", c.Path()),
				logger.Error(err))
		}
		return err
	}
}

// Recover turns handler panics into 500 responses instead of dropped
// connections.
func (m *Middleware) Recover() fiber.Handler {
	return recover.New()
}

// CORS admits browser clients. apikey and Prefer are the non-standard
// headers the REST dialect rides on.
func (m *Middleware) CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,apikey,Prefer,X-Request-ID",
	})
}

// RequireAnonKey rejects requests that do not present the project api key.
// The key only identifies the project; per-user authorization rides on the
// JWT.
func (m *Middleware) RequireAnonKey() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("apikey")
		if key == "" {
			key = c.Query("apikey")
		}
		if key == "" {
			return writeError(c, fiber.StatusUnauthorized, "no api key found in request", "")
		}
		if key != m.anonKey {
			return writeError(c, fiber.StatusUnauthorized, "invalid api key", "")
		}
		return c.Next()
	}
}

// Protect requires a valid bearer token and exposes the authenticated user
// through the request's user context.
func (m *Middleware) Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return writeError(c, fiber.StatusUnauthorized, "missing authorization header", "")
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				// The code is what tells clients to refresh instead of
				// re-authenticating.
				return writeError(c, fiber.StatusUnauthorized, "jwt expired", "jwt_expired")
			}
			m.log.Debug("rejected access token", logger.Error(err))
			return writeError(c, fiber.StatusUnauthorized, "invalid JWT", "")
		}

		ctx := utils.WithUserID(c.UserContext(), claims.UserID())
		ctx = utils.WithUserEmail(ctx, claims.Email)
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
