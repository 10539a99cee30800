// Package realtime fans committed row changes out to live WebSocket
// subscriptions.
package realtime

import (
	"context"
	"errors"
	"sync"

	"linkvault/internal/emulator/domain/model"
	"linkvault/internal/emulator/logger"
)

// subscription binds one client channel to the owner whose rows it wants.
type subscription struct {
	ownerID string
	ch      chan<- model.ChangeEvent
}

// Hub tracks which connection listens to which table, filtered by owner.
//
// Channel ownership: the connection handler owns its channel and must close
// it only after its subscriptions are removed; Publish and the removal paths
// exclude each other on the hub lock, so no send can race a close.
type Hub struct {
	mu sync.RWMutex
	// table -> subscriber id -> subscription
	subscriptions map[string]map[string]subscription
	log           logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		subscriptions: make(map[string]map[string]subscription),
		log:           log,
	}
}

// Subscribe registers a channel for one table, delivering only events whose
// row belongs to ownerID. A second subscribe by the same subscriber to the
// same table replaces the first.
func (h *Hub) Subscribe(subscriberID, table, ownerID string, ch chan<- model.ChangeEvent) error {
	if subscriberID == "" || table == "" || ownerID == "" {
		return errors.New("subscriber id, table and owner id must not be empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscriptions[table]; !ok {
		h.subscriptions[table] = make(map[string]subscription)
	}
	if _, ok := h.subscriptions[table][subscriberID]; ok {
		h.log.Warn("replacing existing subscription",
			logger.String("subscriber_id", subscriberID),
			logger.String("table", table))
	}
	h.subscriptions[table][subscriberID] = subscription{ownerID: ownerID, ch: ch}

	h.log.Info("client subscribed",
		logger.String("subscriber_id", subscriberID),
		logger.String("table", table),
		logger.String("owner_id", ownerID))
	return nil
}

// Unsubscribe removes one subscription. Unknown subscriptions are ignored.
func (h *Hub) Unsubscribe(subscriberID, table string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(subscriberID, table)
}

// UnsubscribeAll removes every subscription held by one subscriber, called
// when its connection goes away.
func (h *Hub) UnsubscribeAll(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for table := range h.subscriptions {
		h.removeLocked(subscriberID, table)
	}
}

func (h *Hub) removeLocked(subscriberID, table string) {
	subs, ok := h.subscriptions[table]
	if !ok {
		return
	}
	if _, ok := subs[subscriberID]; !ok {
		return
	}
	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(h.subscriptions, table)
	}
	h.log.Info("client unsubscribed",
		logger.String("subscriber_id", subscriberID),
		logger.String("table", table))
}

// Publish delivers an event to every subscription of the table whose owner
// matches the affected row. Sends never block; a subscriber whose channel is
// full loses the event and catches up through its next refetch.
func (h *Hub) Publish(ctx context.Context, table string, event model.ChangeEvent) error {
	owner := event.OwnerID()
	if owner == "" {
		h.log.Warn("dropping event without owner", logger.String("table", table))
		return nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.subscriptions[table]
	if !ok {
		return nil
	}

	for subID, sub := range subs {
		if sub.ownerID != owner {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			h.log.Warn("subscriber channel full, dropping event",
				logger.String("subscriber_id", subID),
				logger.String("table", table))
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscriptions for a table.
func (h *Hub) SubscriberCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[table])
}
