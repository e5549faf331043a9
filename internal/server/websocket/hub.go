package websocket

import (
	"sync"

	"promptkit/internal/render"
	"promptkit/internal/server/handlers"
	"promptkit/internal/tokenizer"
	"promptkit/pkg/logger"
)

// Hub tracks connected clients and the settings their sessions render with.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu sync.RWMutex

	tok           tokenizer.Tokenizer
	defaults      render.Options
	charsPerToken int
	journal       handlers.JournalFunc
}

// NewHub creates a Hub whose clients render with tok and defaults.
func NewHub(tok tokenizer.Tokenizer, defaults render.Options, charsPerToken int) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		tok:           tok,
		defaults:      defaults,
		charsPerToken: charsPerToken,
	}
}

// SetJournal sets the callback invoked after every render.
func (h *Hub) SetJournal(fn handlers.JournalFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.journal = fn
}

func (h *Hub) record(res render.Result, path string) {
	h.mu.RLock()
	fn := h.journal
	h.mu.RUnlock()
	if fn != nil {
		fn(res, path)
	}
}

// Run starts the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.cancel()
			}
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client disconnected")

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every client connection and ends Run. It is idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
