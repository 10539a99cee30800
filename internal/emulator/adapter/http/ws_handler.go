package http

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"linkvault/internal/emulator/adapter/security"
	"linkvault/internal/emulator/domain/model"
	"linkvault/internal/emulator/logger"
	"linkvault/internal/emulator/realtime"
)

const (
	defaultHeartbeatEvery = 25 * time.Second
	wsWriteTimeout        = 10 * time.Second
	eventBuffer           = 32
	outboundBuffer        = 64
)

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
	actionHeartbeat   = "heartbeat"
)

const (
	msgTypeSubscriptionConfirmed   = "subscription_confirmed"
	msgTypeUnsubscriptionConfirmed = "unsubscription_confirmed"
	msgTypeChange                  = "change"
	msgTypeHeartbeat               = "heartbeat"
	msgTypeError                   = "error"
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

// WSHandler upgrades realtime connections and bridges hub events onto them.
type WSHandler struct {
	tokens *security.TokenService
	hub    *realtime.Hub
	log    logger.Logger

	heartbeatEvery time.Duration
}

func NewWSHandler(tokens *security.TokenService, hub *realtime.Hub, log logger.Logger) *WSHandler {
	return &WSHandler{
		tokens:         tokens,
		hub:            hub,
		log:            log.Named("realtime-handler"),
		heartbeatEvery: defaultHeartbeatEvery,
	}
}

func (h *WSHandler) RegisterRoutes(router fiber.Router) {
	group := router.Group("/realtime/v1")
	group.Use("/listen", h.upgrade)
	group.Get("/listen", websocket.New(h.handleConnection))
}

// upgrade authenticates the handshake. Browsers cannot set headers on a
// WebSocket dial, so the token rides in the query string.
func (h *WSHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	claims, err := h.tokens.Validate(c.Query("token"))
	if err != nil {
		return writeError(c, fiber.StatusUnauthorized, "invalid JWT", "")
	}
	c.Locals("userID", claims.UserID())
	return c.Next()
}

// handleConnection owns one socket. The connection runs as two goroutines:
// this one reads client messages, a second one performs every write. Control
// replies and hub events funnel into the writer through channels, so no two
// goroutines ever write the socket concurrently.
func (h *WSHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals("userID").(string)
	if userID == "" {
		conn.Close()
		return
	}
	subscriberID := uuid.NewString()

	h.log.Info("realtime client connected",
		logger.String("subscriberID", subscriberID),
		logger.String("userID", userID))

	sess := &wsSession{
		handler:      h,
		conn:         conn,
		subscriberID: subscriberID,
		userID:       userID,
		outbound:     make(chan serverMessage, outboundBuffer),
		writerDone:   make(chan struct{}),
		topics:       make(map[string]chan model.ChangeEvent),
	}

	go func() {
		defer close(sess.writerDone)
		defer conn.Close()
		h.writeLoop(conn, subscriberID, sess.outbound)
	}()

	sess.readLoop()

	// Teardown order matters: the hub stops publishing before the event
	// channels close, and the forwarders drain before outbound closes.
	h.hub.UnsubscribeAll(subscriberID)
	sess.closeTopics()
	close(sess.outbound)
	<-sess.writerDone

	h.log.Info("realtime client disconnected", logger.String("subscriberID", subscriberID))
}

// writeLoop is the single writer for the connection. It drains outbound and
// emits heartbeats until the channel closes or a write fails.
func (h *WSHandler) writeLoop(conn *websocket.Conn, subscriberID string, outbound <-chan serverMessage) {
	heartbeat := time.NewTicker(h.heartbeatEvery)
	defer heartbeat.Stop()

	for {
		select {
		case msg, ok := <-outbound:
			if !ok {
				return
			}
			if err := writeMessage(conn, msg); err != nil {
				h.log.Warn("realtime write failed",
					logger.String("subscriberID", subscriberID),
					logger.Error(err))
				return
			}
		case <-heartbeat.C:
			if err := writeMessage(conn, serverMessage{Type: msgTypeHeartbeat}); err != nil {
				h.log.Warn("realtime heartbeat failed",
					logger.String("subscriberID", subscriberID),
					logger.Error(err))
				return
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, msg serverMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(msg)
}

// wsSession is the per-connection state: the subscribed topics and the
// channels feeding the writer. Only the read goroutine touches topics, so no
// lock guards the map.
type wsSession struct {
	handler      *WSHandler
	conn         *websocket.Conn
	subscriberID string
	userID       string

	outbound   chan serverMessage
	writerDone chan struct{}

	forwarders sync.WaitGroup
	topics     map[string]chan model.ChangeEvent
}

func (s *wsSession) readLoop() {
	for {
		// A live peer echoes heartbeats, so reads arrive at least every
		// heartbeat interval.
		s.conn.SetReadDeadline(time.Now().Add(3 * s.handler.heartbeatEvery))

		var msg clientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.handler.log.Warn("realtime read failed",
					logger.String("subscriberID", s.subscriberID),
					logger.Error(err))
			}
			return
		}

		switch msg.Action {
		case actionSubscribe:
			s.subscribe(msg)
		case actionUnsubscribe:
			s.unsubscribe(msg)
		case actionHeartbeat:
			// The receipt alone refreshed the read deadline.
		default:
			s.reply(serverMessage{Type: msgTypeError, Message: "unknown action: " + msg.Action})
		}
	}
}

func (s *wsSession) subscribe(msg clientMessage) {
	if msg.Topic == "" {
		s.reply(serverMessage{Type: msgTypeError, Message: "subscribe needs a topic"})
		return
	}
	owner, err := ownerFromFilter(msg.Filter)
	if err != nil {
		s.reply(serverMessage{Type: msgTypeError, Topic: msg.Topic, Message: err.Error()})
		return
	}
	// Subscribers only watch their own rows, whatever filter they ask for.
	if owner != s.userID {
		s.reply(serverMessage{Type: msgTypeError, Topic: msg.Topic, Message: "filter owner does not match the authenticated user"})
		return
	}

	if _, exists := s.topics[msg.Topic]; exists {
		s.reply(serverMessage{Type: msgTypeSubscriptionConfirmed, Topic: msg.Topic})
		return
	}

	events := make(chan model.ChangeEvent, eventBuffer)
	if err := s.handler.hub.Subscribe(s.subscriberID, msg.Topic, owner, events); err != nil {
		s.reply(serverMessage{Type: msgTypeError, Topic: msg.Topic, Message: "subscription failed"})
		return
	}
	s.topics[msg.Topic] = events
	s.forwarders.Add(1)
	go s.forward(msg.Topic, events)

	// Confirmation follows registration, so consumers that refetch on
	// confirm cannot miss rows changed in between.
	s.reply(serverMessage{Type: msgTypeSubscriptionConfirmed, Topic: msg.Topic})
}

func (s *wsSession) unsubscribe(msg clientMessage) {
	events, ok := s.topics[msg.Topic]
	if !ok {
		s.reply(serverMessage{Type: msgTypeError, Topic: msg.Topic, Message: "not subscribed to topic: " + msg.Topic})
		return
	}

	s.handler.hub.Unsubscribe(s.subscriberID, msg.Topic)
	delete(s.topics, msg.Topic)
	close(events)

	s.reply(serverMessage{Type: msgTypeUnsubscriptionConfirmed, Topic: msg.Topic})
}

// forward wraps hub events for one topic and queues them for the writer.
func (s *wsSession) forward(topic string, events <-chan model.ChangeEvent) {
	defer s.forwarders.Done()
	for event := range events {
		msg := serverMessage{
			Type:   msgTypeChange,
			Topic:  topic,
			Event:  event.Event,
			Row:    event.Row,
			OldRow: event.OldRow,
		}
		select {
		case s.outbound <- msg:
		case <-s.writerDone:
			return
		}
	}
}

// reply queues a control message for the writer. Dropping it when the writer
// is gone is fine; the connection is already tearing down.
func (s *wsSession) reply(msg serverMessage) {
	select {
	case s.outbound <- msg:
	case <-s.writerDone:
	}
}

// closeTopics closes every event channel and waits for the forwarders to
// drain. The hub registrations must be gone before this runs.
func (s *wsSession) closeTopics() {
	for _, events := range s.topics {
		close(events)
	}
	s.forwarders.Wait()
}

// ownerFromFilter parses the one filter shape the feed speaks,
// owner_id=eq.<id>.
func ownerFromFilter(filter string) (string, error) {
	owner, ok := strings.CutPrefix(filter, "owner_id=eq.")
	if !ok || owner == "" {
		return "", fmt.Errorf("unsupported filter %q", filter)
	}
	return owner, nil
}
