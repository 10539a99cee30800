package auth

import (
	"context"

	"linkvault/internal/auth/adapter/gotrue"
	"linkvault/internal/auth/domain/client"
	"linkvault/internal/auth/usecase"
	"linkvault/internal/shared/logger"
)

// Module bundles the identity provider and session store for client binaries.
type Module struct {
	provider *gotrue.Client
	store    *usecase.SessionStore
}

// ModuleConfig carries the backend endpoint and session persistence settings.
type ModuleConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8080.
	BaseURL string
	// AnonKey authenticates the client application itself.
	AnonKey string
	// SessionFile overrides the default ~/.linkvault/session.json location.
	SessionFile string
}

// NewModule wires storage, provider and store.
func NewModule(cfg ModuleConfig, log logger.Logger) (*Module, error) {
	path := cfg.SessionFile
	if path == "" {
		var err error
		path, err = gotrue.DefaultSessionPath()
		if err != nil {
			return nil, err
		}
	}
	storage := gotrue.NewFileSessionStorage(path)
	provider := gotrue.New(cfg.BaseURL, cfg.AnonKey, storage, log)
	store := usecase.NewSessionStore(provider, log)
	return &Module{provider: provider, store: store}, nil
}

// Provider returns the identity provider for direct grant calls.
func (m *Module) Provider() client.IdentityProvider {
	return m.provider
}

// Store returns the session store.
func (m *Module) Store() *usecase.SessionStore {
	return m.store
}

// Start restores persisted state and begins background token refresh.
func (m *Module) Start(ctx context.Context) {
	m.store.Start(ctx)
}

// Stop halts background refresh.
func (m *Module) Stop() {
	m.store.Close()
}
