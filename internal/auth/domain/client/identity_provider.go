package client

import (
	"context"

	"linkvault/internal/auth/domain/model"
)

// IdentityProvider is the external identity service behind the session store.
// Implementations return typed errors from internal/shared/errors.
type IdentityProvider interface {
	// CurrentSession restores a previously established session, refreshing it
	// when it is close to expiry. It returns (nil, nil) when no session
	// exists.
	CurrentSession(ctx context.Context) (*model.Session, error)

	SignUp(ctx context.Context, email, password string) (*model.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)

	// RefreshSession exchanges a refresh token for a fresh session. Refresh
	// tokens rotate; the one passed in is dead afterwards either way.
	RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error)

	// SignOut revokes the session server-side and drops any persisted copy.
	SignOut(ctx context.Context, accessToken string) error
}
