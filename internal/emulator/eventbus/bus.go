// Package eventbus distributes committed row changes to in-process
// subscribers, decoupling the REST handlers from the realtime fan-out.
package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"linkvault/internal/emulator/domain/model"
	"linkvault/internal/emulator/logger"
)

// Handler processes one change event for a table it subscribed to.
type Handler func(ctx context.Context, event model.ChangeEvent) error

// Bus is an in-memory event bus keyed by table name.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      logger.Logger
	config   BusConfig
}

// BusConfig holds delivery retry settings.
type BusConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultBusConfig returns default configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	}
}

// NewBus creates a new event bus instance.
func NewBus(log logger.Logger) *Bus {
	return NewBusWithConfig(log, DefaultBusConfig())
}

// NewBusWithConfig creates a new event bus with custom configuration.
func NewBusWithConfig(log logger.Logger, config BusConfig) *Bus {
	if log == nil {
		log = logger.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      log,
		config:   config,
	}
}

// Subscribe adds a handler for one table's change events.
func (b *Bus) Subscribe(table string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[table] = append(b.handlers[table], handler)
	b.log.Debugf("subscribed handler for table %s", table)
}

// Publish delivers an event to every handler of the table, in subscription
// order. A handler that keeps failing after retries aborts the remaining
// deliveries.
func (b *Bus) Publish(ctx context.Context, table string, event model.ChangeEvent) error {
	b.mu.RLock()
	handlers := b.handlers[table]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debugf("no handlers for table %s", table)
		return nil
	}

	for i, handler := range handlers {
		if err := b.executeHandler(ctx, table, event, handler, i); err != nil {
			return err
		}
	}
	return nil
}

// PublishAndForget delivers an event in the background, logging failures
// instead of returning them. Used where the mutation has already committed
// and must not fail on delivery problems.
func (b *Bus) PublishAndForget(ctx context.Context, table string, event model.ChangeEvent) {
	go func() {
		if err := b.Publish(ctx, table, event); err != nil {
			b.log.Errorf("failed to publish %s event for table %s: %v", event.Event, table, err)
		}
	}()
}

// SubscriberCount returns the number of handlers for a table.
func (b *Bus) SubscriberCount(table string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[table])
}

func (b *Bus) executeHandler(ctx context.Context, table string, event model.ChangeEvent, handler Handler, handlerIndex int) error {
	var lastErr error

	for attempt := 0; attempt <= b.config.MaxRetries; attempt++ {
		if attempt > 0 {
			b.log.Warnf("retrying handler %d for table %s (attempt %d/%d)",
				handlerIndex, table, attempt+1, b.config.MaxRetries+1)
			time.Sleep(b.config.RetryDelay)
		}

		if err := handler(ctx, event); err != nil {
			lastErr = err
			b.log.Errorf("handler %d failed for table %s: %v", handlerIndex, table, err)
			continue
		}

		if attempt > 0 {
			b.log.Infof("handler %d succeeded for table %s after %d retries",
				handlerIndex, table, attempt)
		}
		return nil
	}

	return fmt.Errorf("handler failed after %d attempts: %w", b.config.MaxRetries+1, lastErr)
}
