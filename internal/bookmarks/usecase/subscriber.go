package usecase

import (
	"context"
	"sync"

	authmodel "linkvault/internal/auth/domain/model"
	"linkvault/internal/bookmarks/domain/client"
	"linkvault/internal/bookmarks/domain/model"
	"linkvault/internal/bookmarks/domain/repository"
	"linkvault/internal/shared/logger"
)

const bookmarksTable = "bookmarks"

// SubscriberState describes the subscription lifecycle.
type SubscriberState int

const (
	// StateDetached means no subscription exists and no cached rows are held.
	StateDetached SubscriberState = iota
	// StateAttaching means a subscription was requested but the backend has
	// not confirmed it yet.
	StateAttaching
	// StateAttached means change notifications are flowing for the bound
	// owner.
	StateAttached
)

func (s SubscriberState) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateAttaching:
		return "attaching"
	case StateAttached:
		return "attached"
	default:
		return "unknown"
	}
}

// Subscriber keeps a cached bookmark list in sync with the backend. It holds
// at most one live subscription, always bound to the current session's
// identity, and refetches the full list on every confirmed subscribe and on
// every change notification. Notifications carry row payloads but are treated
// only as hints that something changed; the list itself always comes from the
// repository, so the cache can never drift from the backend's ordering or
// visibility rules.
//
// All state lives in a single goroutine started by Start. Session changes,
// feed events and refresh requests are delivered to it over channels, so no
// locking is needed around the attach/detach transitions themselves.
type Subscriber struct {
	feed client.ChangeFeed
	repo repository.BookmarkRepository
	log  logger.Logger

	sessionCh chan *authmodel.Session
	refreshCh chan struct{}

	mu      sync.RWMutex
	items   []model.Bookmark
	state   SubscriberState
	lastErr error

	// updates has capacity one; repeated changes coalesce into a single tick.
	updates chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSubscriber(feed client.ChangeFeed, repo repository.BookmarkRepository, log logger.Logger) *Subscriber {
	return &Subscriber{
		feed:      feed,
		repo:      repo,
		log:       log.WithComponent("subscriber"),
		sessionCh: make(chan *authmodel.Session, 16),
		refreshCh: make(chan struct{}, 1),
		updates:   make(chan struct{}, 1),
		closed:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the subscriber loop. The subscriber stays detached until a
// session arrives via SessionChanged.
func (s *Subscriber) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Close tears down any live subscription and stops the loop. It is safe to
// call more than once.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.cancel != nil {
			s.cancel()
		}
		<-s.done
	})
}

// SessionChanged reports a session transition. Passing nil detaches and
// clears the cached list; a new identity tears down the previous owner's
// subscription before attaching the new one. Designed to be registered as the
// session store's change handler.
func (s *Subscriber) SessionChanged(sess *authmodel.Session) {
	select {
	case <-s.closed:
	case s.sessionCh <- sess:
	}
}

// Refresh asks the loop to refetch the list. No-op while detached.
func (s *Subscriber) Refresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// Snapshot returns the cached rows, the subscription state and the most
// recent error, if any. The slice is a copy and safe to retain.
func (s *Subscriber) Snapshot() ([]model.Bookmark, SubscriberState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]model.Bookmark, len(s.items))
	copy(items, s.items)
	return items, s.state, s.lastErr
}

// Updates signals whenever the snapshot changes. Ticks are coalesced; read
// Snapshot after each receive.
func (s *Subscriber) Updates() <-chan struct{} {
	return s.updates
}

func (s *Subscriber) run(ctx context.Context) {
	defer close(s.done)

	var (
		ch         client.Channel
		boundOwner string
	)

	teardown := func() {
		if ch != nil {
			if err := ch.Close(); err != nil {
				s.log.Warnf("closing change feed: %v", err)
			}
			ch = nil
		}
		boundOwner = ""
		s.setDetached()
	}
	defer teardown()

	for {
		// Feed channels are rebound each pass; nil channels park their select
		// arms while detached.
		var (
			confirmed <-chan struct{}
			events    <-chan model.ChangeEvent
			errs      <-chan error
		)
		if ch != nil {
			confirmed = ch.Confirmed()
			events = ch.Events()
			errs = ch.Errs()
		}

		select {
		case <-ctx.Done():
			return

		case sess := <-s.sessionCh:
			sess = s.drainSessions(sess)
			owner := ""
			if sess != nil {
				owner = sess.UserID()
			}
			if owner == boundOwner && (owner == "" || ch != nil) {
				// Token refresh or duplicate notification; the subscription
				// is unaffected.
				continue
			}
			teardown()
			if owner == "" {
				continue
			}
			next, err := s.feed.Open(ctx, client.Filter{Table: bookmarksTable, OwnerID: owner})
			if err != nil {
				s.log.Warnf("opening change feed for %s: %v", owner, err)
				s.setError(err)
				continue
			}
			ch = next
			boundOwner = owner
			s.setAttaching()

		case <-confirmed:
			// Fires on the initial subscribe and again after transport-level
			// resubscribes; the refetch covers any gap in between.
			s.setAttached()
			s.refreshNow(ctx, boundOwner)

		case <-events:
			s.refreshNow(ctx, boundOwner)

		case err := <-errs:
			s.log.Warnf("change feed error: %v", err)
			s.setError(err)

		case <-s.refreshCh:
			s.refreshNow(ctx, boundOwner)
		}
	}
}

// drainSessions collapses a burst of queued transitions into the latest one,
// so rapid sign-in/sign-out sequences do not open subscriptions that are
// already stale.
func (s *Subscriber) drainSessions(latest *authmodel.Session) *authmodel.Session {
	for {
		select {
		case next := <-s.sessionCh:
			latest = next
		default:
			return latest
		}
	}
}

func (s *Subscriber) refreshNow(ctx context.Context, owner string) {
	if owner == "" {
		return
	}
	items, err := s.repo.List(ctx, owner)
	if err != nil {
		s.log.Warnf("refreshing bookmarks: %v", err)
		s.setError(err)
		return
	}
	s.setItems(items)
}

func (s *Subscriber) setItems(items []model.Bookmark) {
	s.mu.Lock()
	s.items = items
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Subscriber) setDetached() {
	s.mu.Lock()
	s.state = StateDetached
	s.items = nil
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Subscriber) setAttaching() {
	s.mu.Lock()
	s.state = StateAttaching
	s.mu.Unlock()
	s.notify()
}

func (s *Subscriber) setAttached() {
	s.mu.Lock()
	s.state = StateAttached
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Subscriber) setError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.notify()
}

func (s *Subscriber) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
