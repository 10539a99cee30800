package http

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"linkvault/internal/emulator/adapter/persistence/redis"
	"linkvault/internal/emulator/adapter/security"
	"linkvault/internal/emulator/domain/model"
	"linkvault/internal/emulator/logger"
	"linkvault/internal/shared/utils"
)

const minPasswordLength = 6

// AuthHandler implements the identity endpoints: signup, the token grants
// and logout.
type AuthHandler struct {
	store  *redis.Store
	hasher *security.PasswordHasher
	tokens *security.TokenService
	log    logger.Logger
}

func NewAuthHandler(store *redis.Store, hasher *security.PasswordHasher, tokens *security.TokenService, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		log:    log.Named("auth-handler"),
	}
}

func (h *AuthHandler) RegisterRoutes(router fiber.Router, mw *Middleware) {
	group := router.Group("/auth/v1", mw.RequireAnonKey())
	group.Post("/signup", h.SignUp)
	group.Post("/token", h.Token)
	group.Post("/logout", mw.Protect(), h.Logout)
	group.Get("/user", mw.Protect(), h.GetUser)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	RefreshToken string      `json:"refresh_token"`
	User         userPayload `json:"user"`
}

// userPayload is the public slice of a user record. The password hash never
// leaves the store through here.
type userPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SignUp registers a user and establishes their first session.
func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid request body", "validation_failed")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid email address", "validation_failed")
	}
	if len(req.Password) < minPasswordLength {
		return writeError(c, fiber.StatusUnprocessableEntity, "password should be at least 6 characters", "weak_password")
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.log.Error("hashing password", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to create user", "")
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.store.CreateUser(c.UserContext(), user); err != nil {
		if errors.Is(err, redis.ErrEmailTaken) {
			return writeError(c, fiber.StatusUnprocessableEntity, "user already registered", "user_already_exists")
		}
		h.log.Error("creating user", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to create user", "")
	}

	h.log.Info("user signed up", logger.String("userID", user.ID))
	return h.respondSession(c, user)
}

// Token dispatches on grant_type the way GoTrue does: password exchanges
// credentials, refresh_token rotates an existing session.
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	switch c.Query("grant_type") {
	case "password":
		return h.passwordGrant(c)
	case "refresh_token":
		return h.refreshGrant(c)
	default:
		return writeError(c, fiber.StatusBadRequest, "unsupported grant type", "invalid_grant")
	}
}

func (h *AuthHandler) passwordGrant(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid request body", "validation_failed")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.store.GetUserByEmail(c.UserContext(), email)
	if err != nil {
		if errors.Is(err, redis.ErrUserNotFound) {
			return invalidCredentials(c)
		}
		h.log.Error("loading user", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to sign in", "")
	}

	if err := h.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, security.ErrPasswordMismatch) {
			return invalidCredentials(c)
		}
		h.log.Error("comparing password", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to sign in", "")
	}

	return h.respondSession(c, user)
}

func (h *AuthHandler) refreshGrant(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid request body", "validation_failed")
	}
	if req.RefreshToken == "" {
		return writeError(c, fiber.StatusBadRequest, "refresh_token is required", "validation_failed")
	}

	userID, next, err := h.store.RotateRefreshToken(c.UserContext(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, redis.ErrRefreshTokenNotFound) {
			// 401 rather than 400 so clients drop the dead session instead
			// of retrying it.
			return writeError(c, fiber.StatusUnauthorized, "refresh token not found", "refresh_token_not_found")
		}
		h.log.Error("rotating refresh token", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to refresh session", "")
	}

	user, err := h.store.GetUser(c.UserContext(), userID)
	if err != nil {
		h.log.Error("loading user for refresh", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to refresh session", "")
	}

	return h.writeSession(c, user, next)
}

// Logout revokes every refresh token the user holds. Issued access tokens
// stay valid until they expire; only their renewal path is cut.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c.UserContext())
	if err != nil {
		return writeError(c, fiber.StatusUnauthorized, "authentication required", "")
	}

	if err := h.store.RevokeUserRefreshTokens(c.UserContext(), userID); err != nil {
		h.log.Error("revoking refresh tokens", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to sign out", "")
	}

	h.log.Info("user signed out", logger.String("userID", userID))
	return c.SendStatus(fiber.StatusNoContent)
}

// GetUser returns the public record of the token's user.
func (h *AuthHandler) GetUser(c *fiber.Ctx) error {
	userID, err := utils.GetUserIDFromContext(c.UserContext())
	if err != nil {
		return writeError(c, fiber.StatusUnauthorized, "authentication required", "")
	}

	user, err := h.store.GetUser(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, redis.ErrUserNotFound) {
			// The token outlived its account.
			return writeError(c, fiber.StatusUnauthorized, "user not found", "")
		}
		h.log.Error("loading user", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to load user", "")
	}

	return c.JSON(userPayload{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

// invalidCredentials reports sign-in failure without revealing whether the
// email or the password was wrong.
func invalidCredentials(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "invalid login credentials", "invalid_credentials")
}

// respondSession starts a fresh session for user: a new refresh token plus a
// signed access token.
func (h *AuthHandler) respondSession(c *fiber.Ctx, user *model.User) error {
	refresh, err := h.store.IssueRefreshToken(c.UserContext(), user.ID)
	if err != nil {
		h.log.Error("issuing refresh token", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to establish session", "")
	}
	return h.writeSession(c, user, refresh)
}

func (h *AuthHandler) writeSession(c *fiber.Ctx, user *model.User, refreshToken string) error {
	access, err := h.tokens.Generate(user.ID, user.Email)
	if err != nil {
		h.log.Error("signing access token", logger.Error(err))
		return writeError(c, fiber.StatusInternalServerError, "unable to establish session", "")
	}

	return c.JSON(sessionResponse{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(h.tokens.TTL() / time.Second),
		RefreshToken: refreshToken,
		User: userPayload{
			ID:        user.ID,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		},
	})
}
