package bookmarks

import (
	"context"

	authmodel "linkvault/internal/auth/domain/model"
	"linkvault/internal/bookmarks/adapter/postgrest"
	"linkvault/internal/bookmarks/adapter/realtime"
	"linkvault/internal/bookmarks/domain/repository"
	"linkvault/internal/bookmarks/usecase"
	"linkvault/internal/shared/logger"
)

// Module bundles the storage client, the authenticated bookmark service and
// the realtime subscriber for client binaries.
type Module struct {
	repo       *postgrest.Client
	service    *usecase.BookmarkService
	subscriber *usecase.Subscriber
}

// ModuleConfig carries the backend endpoints.
type ModuleConfig struct {
	// BaseURL is the REST root, e.g. http://localhost:8080.
	BaseURL string
	// WSBaseURL is the realtime root, e.g. ws://localhost:8080. Empty derives
	// nothing; callers pass the matching ws endpoint for BaseURL.
	WSBaseURL string
	// AnonKey authenticates the client application itself.
	AnonKey string
}

// Sessions is what the module needs from the auth layer.
type Sessions interface {
	Current() *authmodel.Session
}

// NewModule wires repository, change feed, service and subscriber.
func NewModule(cfg ModuleConfig, sessions Sessions, log logger.Logger) *Module {
	repo := postgrest.New(cfg.BaseURL, cfg.AnonKey, sessions, log)
	feed := realtime.NewFeed(cfg.WSBaseURL, sessions, log)
	return &Module{
		repo:       repo,
		service:    usecase.NewBookmarkService(repo, sessions, log),
		subscriber: usecase.NewSubscriber(feed, repo, log),
	}
}

// Service returns the authenticated bookmark surface.
func (m *Module) Service() *usecase.BookmarkService {
	return m.service
}

// Subscriber returns the realtime subscriber. Register its SessionChanged
// method as the session store's change handler.
func (m *Module) Subscriber() *usecase.Subscriber {
	return m.subscriber
}

// Repository exposes the raw storage client.
func (m *Module) Repository() repository.BookmarkRepository {
	return m.repo
}

// Start launches the subscriber loop.
func (m *Module) Start(ctx context.Context) {
	m.subscriber.Start(ctx)
}

// Stop detaches any live subscription and stops the loop.
func (m *Module) Stop() {
	m.subscriber.Close()
}
