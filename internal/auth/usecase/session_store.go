package usecase

import (
	"context"
	"sync"
	"time"

	"linkvault/internal/auth/domain/client"
	"linkvault/internal/auth/domain/model"
	"linkvault/internal/shared/errors"
	"linkvault/internal/shared/logger"
)

const (
	// defaultRefreshLead is how long before expiry the access token is renewed.
	defaultRefreshLead = 30 * time.Second
	// defaultRetryInterval spaces refresh attempts when the backend is unreachable.
	defaultRetryInterval = 15 * time.Second
)

// SessionStoreInterface exposes the client's authentication state.
type SessionStoreInterface interface {
	Current() *model.Session
	OnChange(handler func(*model.Session))
	SignUp(ctx context.Context, email, password string) (*model.Session, error)
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context) error
}

// SessionStore holds the current session and applies full-state transitions
// from sign-in, sign-out and token refresh. Exactly one handler at a time
// observes transitions; registering a new handler replaces the previous one.
//
// Operations serialize on an internal mutex, so a refresh finishing after a
// sign-out cannot resurrect the session.
type SessionStore struct {
	provider client.IdentityProvider
	log      logger.Logger

	// opMu serializes provider calls and the transitions they produce.
	opMu sync.Mutex

	mu      sync.RWMutex
	current *model.Session
	handler func(*model.Session)

	refreshLead   time.Duration
	retryInterval time.Duration

	recheck chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ SessionStoreInterface = (*SessionStore)(nil)

// NewSessionStore creates a stopped store; Start restores state and begins
// background token refresh.
func NewSessionStore(provider client.IdentityProvider, log logger.Logger) *SessionStore {
	return &SessionStore{
		provider:      provider,
		log:           log.WithComponent("session-store"),
		refreshLead:   defaultRefreshLead,
		retryInterval: defaultRetryInterval,
		recheck:       make(chan struct{}, 1),
	}
}

// Current returns the latest known session, nil when signed out.
func (s *SessionStore) Current() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnChange registers the transition handler, replacing any previous one. The
// handler runs synchronously after the new state is visible to Current; it
// must not call back into the store.
func (s *SessionStore) OnChange(handler func(*model.Session)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// Start restores any persisted session and starts the refresh loop. Call it
// once; Close stops the background work.
func (s *SessionStore) Start(ctx context.Context) {
	s.opMu.Lock()
	sess, err := s.provider.CurrentSession(ctx)
	if err != nil {
		if errors.IsUnauthenticated(err) {
			s.log.Debug("no restorable session")
		} else {
			s.log.Warnf("restoring session: %v", err)
		}
		sess = nil
	}
	s.apply(sess)
	s.opMu.Unlock()

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.refreshLoop(loopCtx)
}

// Close stops the background refresh loop. The current session stays as-is.
func (s *SessionStore) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *SessionStore) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	sess, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.apply(sess)
	return sess, nil
}

func (s *SessionStore) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.apply(sess)
	return sess, nil
}

// SignOut ends the session. The local transition applies even when the
// server-side revoke fails; the error is returned for logging.
func (s *SessionStore) SignOut(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cur := s.Current()
	if cur == nil {
		return nil
	}
	err := s.provider.SignOut(ctx, cur.AccessToken)
	s.apply(nil)
	return err
}

// apply installs the next session state and notifies the handler. The state
// is visible to Current before the handler runs.
func (s *SessionStore) apply(next *model.Session) {
	s.mu.Lock()
	s.current = next
	handler := s.handler
	s.mu.Unlock()

	select {
	case s.recheck <- struct{}{}:
	default:
	}
	if handler != nil {
		handler(next)
	}
}

func (s *SessionStore) refreshLoop(ctx context.Context) {
	defer close(s.done)
	for {
		var timer *time.Timer
		var timerC <-chan time.Time
		if cur := s.Current(); cur != nil {
			d := time.Until(cur.ExpiresAt.Add(-s.refreshLead))
			if d < s.retryInterval {
				d = s.retryInterval
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.recheck:
		case <-timerC:
			s.refreshNow(ctx)
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// refreshNow renews the access token. A rejected refresh token means the
// session is gone server-side and applies a sign-out transition; transport
// failures keep the session and the loop retries.
func (s *SessionStore) refreshNow(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cur := s.Current()
	if cur == nil {
		return
	}
	sess, err := s.provider.RefreshSession(ctx, cur.RefreshToken)
	if err != nil {
		if errors.IsUnauthenticated(err) {
			s.log.Info("refresh token rejected, signing out")
			s.apply(nil)
			return
		}
		s.log.Warnf("refreshing session: %v", err)
		return
	}
	s.apply(sess)
}
