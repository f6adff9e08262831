// Package messaging implements the event bus that delivers presentation
// events (levelUp, achievementUnlocked, dailyGoalCompleted ...) from the
// ledger service to subscribers: the notification feed, metrics and, when
// Redis is configured, other instances.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// OBSERVER
// ══════════════════════════════════════════════════════════════════════════════

// Origin label values: whether an event was raised by this instance or
// received from another one over Redis.
const (
	OriginLocal  = "local"
	OriginRemote = "remote"
)

// Observer receives one call per published event and one per handler run.
// The metrics package implements it.
type Observer interface {
	ObserveEventPublished(eventType shared.EventType, origin string)
	ObserveHandler(eventType shared.EventType, elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveEventPublished(shared.EventType, string)         {}
func (noopObserver) ObserveHandler(shared.EventType, time.Duration, error) {}

// Origin reports where event came from. Events that do not carry an origin
// are local.
func Origin(event shared.Event) string {
	if o, ok := event.(interface{ Origin() string }); ok {
		return o.Origin()
	}
	return OriginLocal
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus delivers events synchronously, in publish order, so the
// events of one ledger operation reach subscribers before the operation returns.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	logger      *zap.Logger
	observer    Observer
	closed      bool
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// Logger for structured logging.
	Logger *zap.Logger

	// Observer receives publish and handler measurements. Optional.
	Observer Observer
}

// DefaultInMemoryEventBusConfig returns a config with no logger and no observer.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Observer == nil {
		config.Observer = noopObserver{}
	}

	return &InMemoryEventBus{
		handlers:    make(map[shared.EventType][]shared.EventHandler),
		allHandlers: make([]shared.EventHandler, 0),
		logger:      config.Logger.With(logger.Component("eventbus")),
		observer:    config.Observer,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", logger.EventType(string(eventType)))

	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")

	return nil
}

// Publish sends an event to all subscribed handlers. Handler errors are
// logged and observed; they never fail the publish.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}

	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	b.observer.ObserveEventPublished(event.EventType(), Origin(event))

	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", logger.EventType(string(event.EventType())))
		return nil
	}

	for _, handler := range handlers {
		if err := b.execute(event, handler); err != nil {
			b.logger.Error("handler error",
				logger.EventType(string(event.EventType())),
				zap.String("origin", Origin(event)),
				zap.Error(err),
			)
		}
	}

	return nil
}

// execute runs one handler, converting a panic into ErrHandlerPanic.
func (b *InMemoryEventBus) execute(event shared.Event, handler shared.EventHandler) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
		b.observer.ObserveHandler(event.EventType(), time.Since(start), err)
	}()
	return handler(event)
}

// Close marks the bus closed. Later Publish and Subscribe calls fail with
// ErrEventBusClosed.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	b.logger.Info("event bus closed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")
)
