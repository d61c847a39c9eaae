package hosthooks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// Event names delivered by the host platform.
const (
	EventCartUpdated   = "cart.updated"
	EventOrderCreated  = "checkout.order_created"
	EventCalculateFees = "cart.calculate_fees"
)

// ErrUnknownEvent reports a delivery for an event no handler is registered for.
var ErrUnknownEvent = errors.New("hosthooks: unknown event")

// Handler processes a single hook delivery and returns the response body.
type Handler func(ctx context.Context, payload Payload) (any, error)

// Registry maps host event names onto their handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   func(context.Context, string, map[string]any)
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger func(context.Context, string, map[string]any)) *Registry {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds a handler to an event name. Later registrations replace earlier ones.
func (r *Registry) Register(event string, handler Handler) {
	event = strings.TrimSpace(event)
	if r == nil || event == "" || handler == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = handler
}

// Dispatch decodes the body and routes it to the event's handler. Unknown
// events are logged and reported with ErrUnknownEvent; the caller decides
// whether that is fatal for the delivery.
func (r *Registry) Dispatch(ctx context.Context, event string, body []byte) (any, error) {
	if r == nil {
		return nil, ErrUnknownEvent
	}

	r.mu.RLock()
	handler, ok := r.handlers[strings.TrimSpace(event)]
	r.mu.RUnlock()
	if !ok {
		r.logger(ctx, "giftwrap.hooks.unknown_event", map[string]any{"event": event})
		return nil, ErrUnknownEvent
	}

	payload, err := ParsePayload(body)
	if err != nil {
		return nil, err
	}
	return handler(ctx, payload)
}

// Events lists the registered event names in stable order.
func (r *Registry) Events() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make([]string, 0, len(r.handlers))
	for event := range r.handlers {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}
