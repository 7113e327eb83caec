package realtime

import (
	"context"
	"sync"

	wstypes "soulchat-agent/internal/domain/websocket"
)

// Handler consumes events delivered over the realtime connection.
type Handler interface {
	// HandleEvent processes one event. Errors are logged, never fatal.
	HandleEvent(ctx context.Context, msg *wstypes.WSMessage) error

	// SupportedEvents returns the event types this handler wants.
	SupportedEvents() []wstypes.EventType
}

// HandlerFunc adapts a function to a Handler for the given events.
type HandlerFunc struct {
	Events []wstypes.EventType
	Fn     func(ctx context.Context, msg *wstypes.WSMessage) error
}

func (h HandlerFunc) HandleEvent(ctx context.Context, msg *wstypes.WSMessage) error {
	return h.Fn(ctx, msg)
}

func (h HandlerFunc) SupportedEvents() []wstypes.EventType {
	return h.Events
}

// HandlerRegistry fans each event out to every handler registered for it, in
// registration order.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[wstypes.EventType][]Handler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[wstypes.EventType][]Handler),
	}
}

// Register registers a handler for its supported events
func (r *HandlerRegistry) Register(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, eventType := range handler.SupportedEvents() {
		r.handlers[eventType] = append(r.handlers[eventType], handler)
	}
}

// GetHandlers returns the handlers for a given event type
func (r *HandlerRegistry) GetHandlers(eventType wstypes.EventType) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Handler(nil), r.handlers[eventType]...)
}
