// Package dispatcher implements the in-process change-feed hub. The
// lifecycle engine publishes insert/update/delete events here after each
// persisted mutation; reconciler sessions and websocket connections
// subscribe. Handlers must merge idempotently: the hub makes no ordering or
// delivery guarantee beyond eventually-per-row.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"workledger/internal/domain/event"
)

// Dispatcher routes change-feed events to registered handlers.
type Dispatcher interface {
	// Subscribe registers a handler for one event type under a name that can
	// later be passed to Unsubscribe.
	Subscribe(eventType event.Type, name string, handler Handler)

	// SubscribeAll registers a handler for every event type under one name.
	SubscribeAll(name string, handler Handler)

	// Unsubscribe removes the named handler everywhere it is registered.
	Unsubscribe(name string)

	// Dispatch delivers the event to handlers in order, returning the first
	// handler error.
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync delivers the event without waiting for handlers.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Publish implements the engine-facing feed port; it is DispatchAsync
	// under the name the lifecycle engine knows.
	Publish(ctx context.Context, evt *event.Event)

	// Close stops accepting events and waits for in-flight async handlers.
	Close() error
}

// Logger is the minimal logging dependency of the hub.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type feedHub struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher.
type Option func(*feedHub)

// WithLogger sets a logger for the dispatcher.
func WithLogger(logger Logger) Option {
	return func(h *feedHub) {
		h.logger = logger
	}
}

// New creates an empty change-feed dispatcher.
func New(opts ...Option) Dispatcher {
	h := &feedHub{handlers: make(map[event.Type][]HandlerInfo)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *feedHub) Subscribe(eventType event.Type, name string, handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.handlers[eventType] = append(h.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})

	if h.logger != nil {
		h.logger.Info("Feed handler registered", "event_type", eventType, "handler_name", name)
	}
}

func (h *feedHub) SubscribeAll(name string, handler Handler) {
	for _, t := range event.Types {
		h.Subscribe(t, name, handler)
	}
}

func (h *feedHub) Unsubscribe(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for eventType, handlers := range h.handlers {
		filtered := handlers[:0]
		for _, info := range handlers {
			if info.Name != name {
				filtered = append(filtered, info)
			}
		}
		h.handlers[eventType] = filtered
	}

	if h.logger != nil {
		h.logger.Info("Feed handler unregistered", "handler_name", name)
	}
}

func (h *feedHub) Dispatch(ctx context.Context, evt *event.Event) error {
	if h.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	for _, info := range h.snapshot(evt.Type) {
		if err := h.safeExecute(ctx, evt, info); err != nil {
			if h.logger != nil {
				h.logger.Error("Feed handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"error", err,
				)
			}
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}
	return nil
}

func (h *feedHub) DispatchAsync(ctx context.Context, evt *event.Event) {
	if h.closed.Load() {
		if h.logger != nil {
			h.logger.Error("Dropping feed event, dispatcher is closed",
				"event_type", evt.Type, "event_id", evt.ID)
		}
		return
	}

	for _, info := range h.snapshot(evt.Type) {
		h.wg.Add(1)
		go func(info HandlerInfo) {
			defer h.wg.Done()
			if err := h.safeExecute(ctx, evt, info); err != nil && h.logger != nil {
				h.logger.Error("Async feed handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"error", err,
				)
			}
		}(info)
	}
}

func (h *feedHub) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}
	h.wg.Wait()
	return nil
}

// Publish implements port.FeedPublisher: delivery is fire-and-forget so a
// slow subscriber never blocks a mutation response.
func (h *feedHub) Publish(ctx context.Context, evt *event.Event) {
	h.DispatchAsync(ctx, evt)
}

func (h *feedHub) snapshot(t event.Type) []HandlerInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]HandlerInfo(nil), h.handlers[t]...)
}

// safeExecute runs a handler with panic recovery so one misbehaving session
// cannot take the hub down.
func (h *feedHub) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return info.Handler(ctx, evt)
}
