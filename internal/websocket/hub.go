// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	wstypes "soulchat-agent/internal/domain/websocket"
	"soulchat-agent/internal/state"

	"go.uber.org/zap"
)

// Hub fans state snapshots and toasts out to every connected UI binding.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *wstypes.WSMessage
	done      chan struct{}

	store  *state.Store
	logger *zap.Logger
}

func NewHub(store *state.Store, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *wstypes.WSMessage, 256),
		done:       make(chan struct{}),
		store:      store,
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done. Every state
// change is pushed as a state message.
func (h *Hub) Run(ctx context.Context) {
	var updates <-chan state.State
	if h.store != nil {
		ch, cancel := h.store.Subscribe()
		defer cancel()
		updates = ch
	}

	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)

		case st, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			h.BroadcastMessage(wstypes.NewMessage(wstypes.EventTypeState, st))
		}
	}
}

// Attach hands a client to the running hub. It reports false once the hub
// has stopped.
func (h *Hub) Attach(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("ui client connected", zap.String("client_id", client.id), zap.Int("total", total))

	// new bindings render from the current snapshot immediately
	if h.store != nil {
		client.SendMessage(wstypes.NewMessage(wstypes.EventTypeState, h.store.Snapshot()))
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client]; exists {
		delete(h.clients, client)
		client.Close()
		h.logger.Info("ui client disconnected",
			zap.String("client_id", client.id),
			zap.Int("total", len(h.clients)),
		)
	}
}

// BroadcastMessage sends msg to every client synchronously.
func (h *Hub) BroadcastMessage(msg *wstypes.WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.SendMessage(msg)
	}
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Broadcast(msg *wstypes.WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ui broadcast queue full, dropping message", zap.String("type", string(msg.Type)))
	}
}

// Toast queues a user-visible transient message.
func (h *Hub) Toast(level wstypes.ToastLevel, message string) {
	h.Broadcast(wstypes.NewMessage(wstypes.EventTypeToast, wstypes.ToastData{
		Level:   level,
		Message: message,
	}))
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
