// internal/notification/hub.go
// Realtime in-app delivery over websockets

package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub maintains active websocket connections, one per user
type Hub struct {
	clients    map[uuid.UUID]*Client
	clientsMux sync.RWMutex

	register   chan *Client
	unregister chan *Client

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run processes registrations until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer h.cleanup()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	// Remove old connection for the same user
	if old, exists := h.clients[client.userID]; exists {
		old.close()
	}
	h.clients[client.userID] = client

	h.logger.Debug("websocket client connected",
		zap.String("user_id", client.userID.String()),
		zap.Int("clients", len(h.clients)),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if current, exists := h.clients[client.userID]; exists && current == client {
		client.close()
		delete(h.clients, client.userID)
		h.logger.Debug("websocket client disconnected",
			zap.String("user_id", client.userID.String()),
			zap.Int("clients", len(h.clients)),
		)
	}
}

func (h *Hub) cleanup() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()
	for _, client := range h.clients {
		client.close()
	}
	h.clients = make(map[uuid.UUID]*Client)
}

// SendToUser queues a frame for the user's connection.
// It reports false when the user is offline or their queue is full.
func (h *Hub) SendToUser(userID uuid.UUID, event string, payload interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("websocket payload marshal failed", zap.Error(err))
		return false
	}
	frame, err := json.Marshal(WSMessage{
		Type:      event,
		Data:      data,
		Timestamp: time.Now(),
	})
	if err != nil {
		return false
	}

	// send is only closed under the write lock
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	client, exists := h.clients[userID]
	if !exists {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		go func() { h.unregister <- client }()
		return false
	}
}

// IsUserOnline reports whether the user has a live connection
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	_, exists := h.clients[userID]
	return exists
}

func (h *Hub) GetActiveConnections() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}
