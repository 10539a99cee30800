package usecase

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmodel "linkvault/internal/auth/domain/model"
	"linkvault/internal/bookmarks/domain/model"
	"linkvault/internal/shared/errors"
	"linkvault/internal/shared/logger"
)

type fakeSessions struct {
	mu   sync.Mutex
	sess *authmodel.Session
}

func (f *fakeSessions) Current() *authmodel.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}

func (f *fakeSessions) set(sess *authmodel.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = sess
}

type recordingRepo struct {
	mu sync.Mutex

	rows    []model.Bookmark
	listErr error

	inserted  *model.Bookmark
	insertErr error

	deleteErr error

	listOwners   []string
	insertOwner  string
	insertTitle  string
	insertURL    string
	deletedID    string
	deleteCalled bool
}

func (r *recordingRepo) List(_ context.Context, ownerID string) ([]model.Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listOwners = append(r.listOwners, ownerID)
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.rows, nil
}

func (r *recordingRepo) Insert(_ context.Context, ownerID, title, url string) (*model.Bookmark, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertOwner = ownerID
	r.insertTitle = title
	r.insertURL = url
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	if r.inserted != nil {
		return r.inserted, nil
	}
	return &model.Bookmark{ID: "bm-1", OwnerID: ownerID, Title: title, URL: url, CreatedAt: time.Now()}, nil
}

func (r *recordingRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalled = true
	r.deletedID = id
	return r.deleteErr
}

func signedIn(userID string) *fakeSessions {
	return &fakeSessions{sess: &authmodel.Session{
		AccessToken:  "tok",
		RefreshToken: "refresh-tok",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         authmodel.User{ID: userID, Email: userID + "@example.com"},
	}}
}

func newTestService(repo *recordingRepo, sessions *fakeSessions) *BookmarkService {
	return NewBookmarkService(repo, sessions, logger.NewLoggerWithOutput("error", "text", io.Discard))
}

func TestBookmarkService_RequiresSession(t *testing.T) {
	repo := &recordingRepo{}
	svc := newTestService(repo, &fakeSessions{})
	ctx := context.Background()

	_, err := svc.List(ctx)
	assert.True(t, errors.IsUnauthenticated(err))

	_, err = svc.Insert(ctx, "title", "example.com")
	assert.True(t, errors.IsUnauthenticated(err))

	err = svc.Delete(ctx, "bm-1")
	assert.True(t, errors.IsUnauthenticated(err))

	assert.Empty(t, repo.listOwners)
	assert.Empty(t, repo.insertOwner)
	assert.False(t, repo.deleteCalled)
}

func TestBookmarkService_ListUsesSessionIdentity(t *testing.T) {
	repo := &recordingRepo{rows: []model.Bookmark{{ID: "bm-1", OwnerID: "user-1"}}}
	svc := newTestService(repo, signedIn("user-1"))

	rows, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, []string{"user-1"}, repo.listOwners)
}

func TestBookmarkService_InsertTrimsAndNormalizes(t *testing.T) {
	repo := &recordingRepo{}
	svc := newTestService(repo, signedIn("user-1"))

	bm, err := svc.Insert(context.Background(), "  My Site  ", "  Example.COM/path  ")
	require.NoError(t, err)
	require.NotNil(t, bm)

	assert.Equal(t, "user-1", repo.insertOwner)
	assert.Equal(t, "My Site", repo.insertTitle)
	assert.Equal(t, "https://example.com/path", repo.insertURL)
}

func TestBookmarkService_InsertEmptyTitle(t *testing.T) {
	repo := &recordingRepo{}
	svc := newTestService(repo, signedIn("user-1"))

	_, err := svc.Insert(context.Background(), "   ", "example.com")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "empty_title", appErr.Code)
	assert.Empty(t, repo.insertOwner)
}

func TestBookmarkService_InsertInvalidURL(t *testing.T) {
	repo := &recordingRepo{}
	svc := newTestService(repo, signedIn("user-1"))

	_, err := svc.Insert(context.Background(), "Broken", "http://no_dots_here")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Empty(t, repo.insertOwner)
}

func TestBookmarkService_DeleteValidatesID(t *testing.T) {
	repo := &recordingRepo{}
	svc := newTestService(repo, signedIn("user-1"))

	err := svc.Delete(context.Background(), "")
	assert.True(t, errors.IsValidation(err))
	assert.False(t, repo.deleteCalled)
}

func TestBookmarkService_DeleteSurfacesNotFound(t *testing.T) {
	repo := &recordingRepo{deleteErr: errors.NewNotFoundError("bookmark")}
	svc := newTestService(repo, signedIn("user-1"))

	err := svc.Delete(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, "missing", repo.deletedID)
}
