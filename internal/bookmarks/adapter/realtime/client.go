package realtime

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"

	authmodel "linkvault/internal/auth/domain/model"
	"linkvault/internal/bookmarks/domain/client"
	"linkvault/internal/bookmarks/domain/model"
	"linkvault/internal/shared/errors"
	"linkvault/internal/shared/logger"
)

const (
	handshakeTimeout = 10 * time.Second
	initialBackoff   = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionHeartbeat   = "heartbeat"
)

const (
	msgSubscriptionConfirmed = "subscription_confirmed"
	msgChange                = "change"
	msgHeartbeat             = "heartbeat"
	msgError                 = "error"
)

type clientMessage struct {
	Action string `json:"action"`
	Topic  string `json:"topic,omitempty"`
	Filter string `json:"filter,omitempty"`
}

type serverMessage struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Event   model.EventType `json:"event,omitempty"`
	Row     *model.Bookmark `json:"row,omitempty"`
	OldRow  *model.Bookmark `json:"old_row,omitempty"`
	Message string          `json:"message,omitempty"`
}

// SessionSource supplies the session whose token authenticates the socket.
// Each dial reads it again, so redials after a token refresh use the new
// token.
type SessionSource interface {
	Current() *authmodel.Session
}

// wsConn is the slice of *websocket.Conn the feed uses. Tests substitute it.
type wsConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

type dialFunc func(ctx context.Context, rawURL string) (wsConn, error)

func defaultDial(ctx context.Context, rawURL string) (wsConn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Feed opens realtime change channels against the backend's WebSocket
// endpoint.
type Feed struct {
	wsBaseURL string
	sessions  SessionSource
	dial      dialFunc
	log       logger.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

var _ client.ChangeFeed = (*Feed)(nil)

// NewFeed creates a change feed rooted at wsBaseURL (for example
// ws://localhost:54321).
func NewFeed(wsBaseURL string, sessions SessionSource, log logger.Logger) *Feed {
	return &Feed{
		wsBaseURL:      strings.TrimRight(wsBaseURL, "/"),
		sessions:       sessions,
		dial:           defaultDial,
		log:            log.WithComponent("realtime-client"),
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Open dials the realtime endpoint and subscribes to changes matching filter.
// The first dial happens synchronously so a dead endpoint fails fast. After
// that the channel owns the connection: on a drop it redials with capped
// backoff, resubscribes, and fires Confirmed again once the backend accepts,
// so consumers refetch whatever happened during the outage.
func (f *Feed) Open(ctx context.Context, filter client.Filter) (client.Channel, error) {
	if filter.Table == "" || filter.OwnerID == "" {
		return nil, errors.NewValidationError("change feed filter needs a table and an owner")
	}

	ch := &channel{
		feed:      f,
		topic:     filter.Table,
		filter:    "owner_id=eq." + filter.OwnerID,
		confirmed: make(chan struct{}, 1),
		events:    make(chan model.ChangeEvent, 32),
		errs:      make(chan error, 4),
		done:      make(chan struct{}),
	}
	ch.ctx, ch.cancel = context.WithCancel(ctx)

	conn, err := ch.connect(ctx)
	if err != nil {
		ch.cancel()
		return nil, err
	}
	go ch.run(conn)
	return ch, nil
}

type channel struct {
	feed   *Feed
	topic  string
	filter string

	confirmed chan struct{}
	events    chan model.ChangeEvent
	errs      chan error

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	conn      wsConn
	closeOnce sync.Once
}

var _ client.Channel = (*channel)(nil)

func (ch *channel) Confirmed() <-chan struct{}       { return ch.confirmed }
func (ch *channel) Events() <-chan model.ChangeEvent { return ch.events }
func (ch *channel) Errs() <-chan error               { return ch.errs }

// Close unsubscribes best effort, drops the connection and stops the redial
// loop. Nothing is delivered on the channels after it returns.
func (ch *channel) Close() error {
	ch.closeOnce.Do(func() {
		ch.cancel()
		ch.mu.Lock()
		conn := ch.conn
		ch.mu.Unlock()
		if conn != nil {
			_ = conn.WriteJSON(clientMessage{Action: actionUnsubscribe, Topic: ch.topic})
			_ = conn.Close()
		}
		<-ch.done
	})
	return nil
}

// connect dials with the current session's token and sends the subscribe
// request. Confirmation arrives later on the read side.
func (ch *channel) connect(ctx context.Context) (wsConn, error) {
	sess := ch.feed.sessions.Current()
	if sess == nil {
		return nil, errors.NewUnauthenticatedError("realtime requires an active session")
	}
	endpoint := ch.feed.wsBaseURL + "/realtime/v1/listen?token=" + url.QueryEscape(sess.AccessToken)

	conn, err := ch.feed.dial(ctx, endpoint)
	if err != nil {
		return nil, errors.NewTransportError("dialing realtime endpoint").WithCause(err)
	}
	if err := conn.WriteJSON(clientMessage{Action: actionSubscribe, Topic: ch.topic, Filter: ch.filter}); err != nil {
		conn.Close()
		return nil, errors.NewTransportError("sending subscribe request").WithCause(err)
	}
	return conn, nil
}

func (ch *channel) run(conn wsConn) {
	defer close(ch.done)
	backoff := ch.feed.initialBackoff

	for {
		ch.track(conn)
		confirmedHere, err := ch.readLoop(conn)
		ch.track(nil)
		conn.Close()
		if ch.ctx.Err() != nil {
			return
		}
		if confirmedHere {
			backoff = ch.feed.initialBackoff
		}
		ch.reportError(err)

		for {
			if !ch.sleep(backoff) {
				return
			}
			if backoff < ch.feed.maxBackoff {
				backoff *= 2
				if backoff > ch.feed.maxBackoff {
					backoff = ch.feed.maxBackoff
				}
			}
			next, dialErr := ch.connect(ch.ctx)
			if dialErr == nil {
				conn = next
				break
			}
			if ch.ctx.Err() != nil {
				return
			}
			ch.feed.log.Warnf("realtime redial failed, backing off %s: %v", backoff, dialErr)
			ch.reportError(dialErr)
		}
	}
}

// readLoop pumps messages until the connection fails. It reports whether the
// subscription was confirmed on this connection, which resets the redial
// backoff.
func (ch *channel) readLoop(conn wsConn) (bool, error) {
	confirmed := false
	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return confirmed, errors.NewTransportError("realtime connection lost").WithCause(err)
		}

		switch msg.Type {
		case msgSubscriptionConfirmed:
			confirmed = true
			ch.signalConfirmed()
		case msgChange:
			if !ch.deliver(model.ChangeEvent{Type: msg.Event, Row: msg.Row, OldRow: msg.OldRow}) {
				return confirmed, nil
			}
		case msgHeartbeat:
			if err := conn.WriteJSON(clientMessage{Action: actionHeartbeat}); err != nil {
				return confirmed, errors.NewTransportError("answering heartbeat").WithCause(err)
			}
		case msgError:
			message := msg.Message
			if message == "" {
				message = "realtime server reported an error"
			}
			return confirmed, errors.NewTransportError(message)
		default:
			// Unknown message types are skipped so the protocol can grow.
		}
	}
}

// track records the live connection so Close can reach it. Rechecking the
// context after publishing closes the race where Close ran between dial and
// track and saw no connection to shut down.
func (ch *channel) track(conn wsConn) {
	ch.mu.Lock()
	ch.conn = conn
	ch.mu.Unlock()
	if conn != nil && ch.ctx.Err() != nil {
		conn.Close()
	}
}

func (ch *channel) signalConfirmed() {
	select {
	case ch.confirmed <- struct{}{}:
	default:
	}
}

func (ch *channel) deliver(ev model.ChangeEvent) bool {
	select {
	case ch.events <- ev:
		return true
	case <-ch.ctx.Done():
		return false
	}
}

func (ch *channel) reportError(err error) {
	select {
	case ch.errs <- err:
	default:
		// The consumer only needs to see that the feed is degraded.
	}
}

func (ch *channel) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ch.ctx.Done():
		return false
	}
}
