package usecase

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"linkvault/internal/auth/domain/model"
	"linkvault/internal/shared/errors"
	"linkvault/internal/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu           sync.Mutex
	restored     *model.Session
	restoreErr   error
	signInErr    error
	refreshNext  *model.Session
	refreshErr   error
	refreshCalls int
	signOutCalls int
	lastRefresh  string
}

func (f *fakeProvider) CurrentSession(ctx context.Context) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restored, f.restoreErr
}

func (f *fakeProvider) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	return testSession("new-user", "tok-signup", time.Hour), nil
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return testSession("user-1", "tok-signin", time.Hour), nil
}

func (f *fakeProvider) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	f.lastRefresh = refreshToken
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshNext, nil
}

func (f *fakeProvider) SignOut(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return nil
}

func (f *fakeProvider) calls() (refresh, signOut int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls, f.signOutCalls
}

func testSession(userID, token string, ttl time.Duration) *model.Session {
	return &model.Session{
		AccessToken:  token,
		TokenType:    "bearer",
		RefreshToken: "refresh-" + token,
		ExpiresAt:    time.Now().Add(ttl),
		User:         model.User{ID: userID, Email: userID + "@example.com"},
	}
}

func newTestStore(p *fakeProvider) *SessionStore {
	s := NewSessionStore(p, logger.NewLoggerWithOutput("error", "text", io.Discard))
	s.refreshLead = 25 * time.Millisecond
	s.retryInterval = 10 * time.Millisecond
	return s
}

func waitTransition(t *testing.T, ch <-chan *model.Session) *model.Session {
	t.Helper()
	select {
	case sess := <-ch:
		return sess
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session transition")
		return nil
	}
}

func TestSessionStore_StartRestoresPersistedSession(t *testing.T) {
	restored := testSession("user-1", "tok-restored", time.Hour)
	p := &fakeProvider{restored: restored}
	s := newTestStore(p)
	defer s.Close()

	transitions := make(chan *model.Session, 16)
	s.OnChange(func(sess *model.Session) { transitions <- sess })
	s.Start(context.Background())

	got := waitTransition(t, transitions)
	require.NotNil(t, got)
	assert.Equal(t, "tok-restored", got.AccessToken)
	assert.Equal(t, restored, s.Current())
}

func TestSessionStore_StartWithoutSession(t *testing.T) {
	p := &fakeProvider{}
	s := newTestStore(p)
	defer s.Close()

	transitions := make(chan *model.Session, 16)
	s.OnChange(func(sess *model.Session) { transitions <- sess })
	s.Start(context.Background())

	assert.Nil(t, waitTransition(t, transitions))
	assert.Nil(t, s.Current())
}

func TestSessionStore_SignInVisibleBeforeHandlerRuns(t *testing.T) {
	p := &fakeProvider{}
	s := newTestStore(p)

	observed := make(chan *model.Session, 1)
	s.OnChange(func(sess *model.Session) {
		// Current must already return the new state inside the handler.
		observed <- s.Current()
	})

	sess, err := s.SignIn(context.Background(), "u@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, sess, <-observed)
	assert.Equal(t, "user-1", s.Current().UserID())
}

func TestSessionStore_SignInFailureKeepsState(t *testing.T) {
	p := &fakeProvider{signInErr: errors.NewUnauthenticatedError("invalid credentials")}
	s := newTestStore(p)

	fired := false
	s.OnChange(func(sess *model.Session) { fired = true })

	_, err := s.SignIn(context.Background(), "u@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, errors.IsUnauthenticated(err))
	assert.Nil(t, s.Current())
	assert.False(t, fired)
}

func TestSessionStore_OnChangeReplacesHandler(t *testing.T) {
	p := &fakeProvider{}
	s := newTestStore(p)

	firstCalls := 0
	s.OnChange(func(sess *model.Session) { firstCalls++ })
	second := make(chan *model.Session, 1)
	s.OnChange(func(sess *model.Session) { second <- sess })

	_, err := s.SignIn(context.Background(), "u@example.com", "pw")
	require.NoError(t, err)

	assert.NotNil(t, <-second)
	assert.Zero(t, firstCalls, "replaced handler must not fire")
}

func TestSessionStore_SignOutAppliesNilState(t *testing.T) {
	p := &fakeProvider{}
	s := newTestStore(p)

	_, err := s.SignIn(context.Background(), "u@example.com", "pw")
	require.NoError(t, err)

	transitions := make(chan *model.Session, 1)
	s.OnChange(func(sess *model.Session) { transitions <- sess })

	require.NoError(t, s.SignOut(context.Background()))
	assert.Nil(t, <-transitions)
	assert.Nil(t, s.Current())

	_, signOuts := p.calls()
	assert.Equal(t, 1, signOuts)
}

func TestSessionStore_SignOutWhenSignedOutIsNoop(t *testing.T) {
	p := &fakeProvider{}
	s := newTestStore(p)

	require.NoError(t, s.SignOut(context.Background()))
	_, signOuts := p.calls()
	assert.Zero(t, signOuts)
}

func TestSessionStore_RefreshLoopRenewsExpiringToken(t *testing.T) {
	expiring := testSession("user-1", "tok-old", 40*time.Millisecond)
	renewed := testSession("user-1", "tok-new", time.Hour)
	p := &fakeProvider{restored: expiring, refreshNext: renewed}
	s := newTestStore(p)
	defer s.Close()

	transitions := make(chan *model.Session, 16)
	s.OnChange(func(sess *model.Session) { transitions <- sess })
	s.Start(context.Background())

	// First transition is the restore, second is the renewal.
	assert.Equal(t, "tok-old", waitTransition(t, transitions).AccessToken)
	got := waitTransition(t, transitions)
	require.NotNil(t, got)
	assert.Equal(t, "tok-new", got.AccessToken)
	assert.Equal(t, "tok-new", s.Current().AccessToken)

	p.mu.Lock()
	assert.Equal(t, "refresh-tok-old", p.lastRefresh)
	p.mu.Unlock()
}

func TestSessionStore_RejectedRefreshSignsOut(t *testing.T) {
	expiring := testSession("user-1", "tok-old", 40*time.Millisecond)
	p := &fakeProvider{restored: expiring, refreshErr: errors.NewUnauthenticatedError("refresh token revoked")}
	s := newTestStore(p)
	defer s.Close()

	transitions := make(chan *model.Session, 16)
	s.OnChange(func(sess *model.Session) { transitions <- sess })
	s.Start(context.Background())

	assert.NotNil(t, waitTransition(t, transitions))
	assert.Nil(t, waitTransition(t, transitions))
	assert.Nil(t, s.Current())
}

func TestSessionStore_TransportErrorKeepsSessionAndRetries(t *testing.T) {
	expiring := testSession("user-1", "tok-old", 40*time.Millisecond)
	p := &fakeProvider{restored: expiring, refreshErr: errors.NewTransportError("backend down")}
	s := newTestStore(p)
	defer s.Close()

	s.Start(context.Background())

	assert.Eventually(t, func() bool {
		refreshes, _ := p.calls()
		return refreshes >= 2
	}, 2*time.Second, 5*time.Millisecond, "refresh should retry on transport errors")

	require.NotNil(t, s.Current())
	assert.Equal(t, "tok-old", s.Current().AccessToken)
}
