package usecase

import (
	"context"
	"strings"

	authmodel "linkvault/internal/auth/domain/model"
	"linkvault/internal/bookmarks/domain/model"
	"linkvault/internal/bookmarks/domain/repository"
	"linkvault/internal/shared/errors"
	"linkvault/internal/shared/logger"
	"linkvault/internal/shared/urlnorm"
)

// SessionSource exposes the acting identity. Satisfied by the auth session
// store.
type SessionSource interface {
	Current() *authmodel.Session
}

// BookmarkServiceInterface is the authenticated bookmark surface.
type BookmarkServiceInterface interface {
	List(ctx context.Context) ([]model.Bookmark, error)
	Insert(ctx context.Context, title, rawURL string) (*model.Bookmark, error)
	Delete(ctx context.Context, id string) error
}

// BookmarkService gates repository access on an active session, validates
// input, and always acts as the session's own identity. Owners are never
// caller-supplied, so a correct client cannot write another user's rows; the
// backend's row policies enforce the same rule independently.
type BookmarkService struct {
	repo     repository.BookmarkRepository
	sessions SessionSource
	log      logger.Logger
}

var _ BookmarkServiceInterface = (*BookmarkService)(nil)

func NewBookmarkService(repo repository.BookmarkRepository, sessions SessionSource, log logger.Logger) *BookmarkService {
	return &BookmarkService{
		repo:     repo,
		sessions: sessions,
		log:      log.WithComponent("bookmark-service"),
	}
}

// List returns the acting user's bookmarks, newest first.
func (s *BookmarkService) List(ctx context.Context) ([]model.Bookmark, error) {
	sess, err := s.activeSession()
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, sess.UserID())
}

// Insert validates and stores a new bookmark for the acting user. The title
// is trimmed and must be non-empty; the url is normalized before it is sent.
func (s *BookmarkService) Insert(ctx context.Context, title, rawURL string) (*model.Bookmark, error) {
	sess, err := s.activeSession()
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.NewValidationError("title must not be empty").WithCode("empty_title")
	}

	normalized, err := urlnorm.Normalize(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}

	bm, err := s.repo.Insert(ctx, sess.UserID(), title, normalized)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(map[string]interface{}{"id": bm.ID}).Debug("bookmark created")
	return bm, nil
}

// Delete permanently removes one of the acting user's bookmarks. Deleting an
// absent or foreign row returns a not-found error the caller may treat as a
// no-op.
func (s *BookmarkService) Delete(ctx context.Context, id string) error {
	if _, err := s.activeSession(); err != nil {
		return err
	}
	if id == "" {
		return errors.NewValidationError("bookmark id must not be empty")
	}
	return s.repo.Delete(ctx, id)
}

func (s *BookmarkService) activeSession() (*authmodel.Session, error) {
	sess := s.sessions.Current()
	if sess == nil {
		return nil, errors.NewUnauthenticatedError("sign in to manage bookmarks")
	}
	return sess, nil
}
