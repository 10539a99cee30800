// Package security implements token issuing/validation and password hashing
// for the emulator.
package security

import (
	"errors"
	"time"

	"linkvault/internal/emulator/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid          = errors.New("token is invalid")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
)

// Claims carried by emulator access tokens. The user id travels in the
// registered Subject claim, matching what hosted deployments issue.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject the token was issued for.
func (c *Claims) UserID() string { return c.Subject }

// TokenService issues and validates HS256 access tokens.
type TokenService struct {
	secretKey []byte
	issuer    string
	ttl       time.Duration
}

// NewTokenService creates a new token service.
func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret key cannot be empty")
	}
	if cfg.JWTIssuer == "" {
		return nil, errors.New("jwt issuer cannot be empty")
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, errors.New("jwt access token TTL must be positive")
	}

	return &TokenService{
		secretKey: []byte(cfg.JWTSecret),
		issuer:    cfg.JWTIssuer,
		ttl:       cfg.AccessTokenTTL,
	}, nil
}

// TTL returns the access token lifetime, used to fill expires_in on session
// payloads.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Generate signs a new access token for the given user.
func (s *TokenService) Generate(userID, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// Validate checks a token's signature and validity window and returns its
// claims.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenSignatureInvalid
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrTokenSignatureInvalid
		}
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrTokenInvalid
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenInvalid
		}
		return nil, ErrTokenInvalid
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
