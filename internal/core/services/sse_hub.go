package services

import (
	"log"
	"sync"
)

// SSEEvent represents a server-sent event
type SSEEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// SSEClient represents a connected borrower app or officer console
type SSEClient struct {
	ID         string
	BorrowerID uint
	Channel    chan SSEEvent
}

// NewSSEClient creates a client with a small buffered channel
func NewSSEClient(id string, borrowerID uint) *SSEClient {
	return &SSEClient{
		ID:         id,
		BorrowerID: borrowerID,
		Channel:    make(chan SSEEvent, 16),
	}
}

// SSEHub manages all SSE connections
type SSEHub struct {
	mu      sync.RWMutex
	clients map[string]*SSEClient
}

// NewSSEHub creates a new SSE hub
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]*SSEClient),
	}
}

// Register adds a new SSE client
func (h *SSEHub) Register(client *SSEClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	log.Printf("📡 SSE client registered: %s (borrower=%d) | total=%d",
		client.ID, client.BorrowerID, len(h.clients))
}

// Unregister removes an SSE client
func (h *SSEHub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Channel)
		delete(h.clients, clientID)
		log.Printf("📡 SSE client unregistered: %s | total=%d", clientID, len(h.clients))
	}
}

// SendToBorrower sends an event to every connection of a borrower and
// returns how many received it. Full channels are skipped, never blocked on.
func (h *SSEHub) SendToBorrower(borrowerID uint, event SSEEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if client.BorrowerID != borrowerID {
			continue
		}
		select {
		case client.Channel <- event:
			sent++
		default:
			log.Printf("⚠️ SSE channel full for client %s, skipping", client.ID)
		}
	}
	return sent
}

// GetClientCount returns the number of connected clients
func (h *SSEHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
