// Package websocket pushes live presence counts and moderation notices to
// browsers over github.com/coder/websocket.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/metrics"
	"github.com/prohub/nexus/backend/internal/presence"
	"go.uber.org/zap"
)

// Hub maintains the set of active clients and broadcasts messages to clients.
type Hub struct {
	// Authenticated clients by user ID for targeted messaging
	clients map[string]map[*Client]struct{}

	// All clients, anonymous ones included
	allClients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	unicast    chan *UnicastMessage

	mu sync.RWMutex

	metrics *Metrics

	// last published counts, replayed to new clients
	countsMu   sync.RWMutex
	lastCounts *presence.OnlineCounts

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	handlers map[string]MessageHandler

	rateLimitConfig RateLimitConfig
}

var _ presence.Publisher = (*Hub)(nil)

// Metrics tracks WebSocket statistics
type Metrics struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesSent       atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// RateLimitConfig defines per-client inbound message limits
type RateLimitConfig struct {
	MaxMessagesPerSecond int
	BurstSize            int
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxMessagesPerSecond: 2,
		BurstSize:            5,
	}
}

// UnicastMessage is a message targeted at a specific user
type UnicastMessage struct {
	UserID  string
	Message *Message
}

// MessageHandler processes incoming messages of a specific type
type MessageHandler func(client *Client, message *Message) error

// NewHub creates a new Hub instance
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:         make(map[string]map[*Client]struct{}),
		allClients:      make(map[*Client]struct{}),
		register:        make(chan *Client, 256),
		unregister:      make(chan *Client, 256),
		broadcast:       make(chan *Message, 256),
		unicast:         make(chan *UnicastMessage, 256),
		metrics:         &Metrics{},
		ctx:             ctx,
		cancel:          cancel,
		handlers:        make(map[string]MessageHandler),
		rateLimitConfig: DefaultRateLimitConfig(),
	}
}

// RegisterHandler registers a handler for a specific message type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// GetHandler returns the handler for a message type
func (h *Hub) GetHandler(msgType string) (MessageHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.handlers[msgType]
	return handler, ok
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()
	logger.Log.Info("WebSocket hub starting")

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case unicast := <-h.unicast:
			h.sendToUser(unicast.UserID, unicast.Message)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if client.UserID != "" {
		if h.clients[client.UserID] == nil {
			h.clients[client.UserID] = make(map[*Client]struct{})
		}
		h.clients[client.UserID][client] = struct{}{}
	}
	h.allClients[client] = struct{}{}
	h.mu.Unlock()

	h.metrics.TotalConnections.Add(1)
	active := h.metrics.ActiveConnections.Add(1)
	metrics.Get().WebSocketConnections.WithLabelValues().Set(float64(active))

	logger.Log.Debug("WebSocket client connected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", active),
	)

	if counts := h.LastCounts(); counts != nil {
		_ = client.Send(NewMessage(MessageTypePresenceCounts, counts))
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; !ok {
		return
	}
	delete(h.allClients, client)

	if clients, ok := h.clients[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.UserID)
		}
	}

	client.closeSend()

	active := h.metrics.ActiveConnections.Add(-1)
	metrics.Get().WebSocketConnections.WithLabelValues().Set(float64(active))

	logger.Log.Debug("WebSocket client disconnected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", active),
	)
}

// deliver queues data on each client, dropping clients whose buffer is full
func (h *Hub) deliver(clients map[*Client]struct{}, data []byte) {
	for client := range clients {
		select {
		case client.send <- data:
			h.metrics.MessagesSent.Add(1)
		default:
			h.metrics.ConnectionsDropped.Add(1)
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.ErrorWithFields("Failed to marshal broadcast message", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(h.allClients, data)
}

func (h *Hub) sendToUser(userID string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.ErrorWithFields("Failed to marshal unicast message", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[userID]; ok {
		h.deliver(clients, data)
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(message *Message) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	}
}

// SendToUser sends a message to every connection of a user
func (h *Hub) SendToUser(userID string, message *Message) {
	select {
	case h.unicast <- &UnicastMessage{UserID: userID, Message: message}:
	case <-h.ctx.Done():
	}
}

// PublishCounts broadcasts counts when they differ from the last published set
func (h *Hub) PublishCounts(counts presence.OnlineCounts) {
	h.countsMu.Lock()
	if h.lastCounts != nil && *h.lastCounts == counts {
		h.countsMu.Unlock()
		return
	}
	h.lastCounts = &counts
	h.countsMu.Unlock()

	h.Broadcast(NewMessage(MessageTypePresenceCounts, counts))
}

// LastCounts returns the most recently published counts, or nil
func (h *Hub) LastCounts() *presence.OnlineCounts {
	h.countsMu.RLock()
	defer h.countsMu.RUnlock()
	if h.lastCounts == nil {
		return nil
	}
	c := *h.lastCounts
	return &c
}

// NotifyContentHidden pushes a moderation notice to the author's open tabs
func (h *Hub) NotifyContentHidden(userID string, payload ContentHiddenPayload) {
	h.SendToUser(userID, NewMessage(MessageTypeContentHidden, payload))
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// IsUserOnline checks if a user has any active connections
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.clients[userID]
	return ok && len(clients) > 0
}

// GetMetrics returns current WebSocket metrics
func (h *Hub) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalConnections:   h.metrics.TotalConnections.Load(),
		ActiveConnections:  h.metrics.ActiveConnections.Load(),
		MessagesReceived:   h.metrics.MessagesReceived.Load(),
		MessagesSent:       h.metrics.MessagesSent.Load(),
		Errors:             h.metrics.Errors.Load(),
		ConnectionsDropped: h.metrics.ConnectionsDropped.Load(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

func (m MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d messages=rx:%d/tx:%d errors=%d dropped=%d",
		m.ActiveConnections, m.TotalConnections,
		m.MessagesReceived, m.MessagesSent,
		m.Errors, m.ConnectionsDropped,
	)
}

// Shutdown stops the event loop and closes every client
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("WebSocket hub shutdown complete", zap.Stringer("metrics", h.GetMetrics()))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, _ := json.Marshal(NewMessage(MessageTypeSystem, SystemPayload{Event: "server_shutdown"}))
	for client := range h.allClients {
		select {
		case client.send <- data:
		default:
		}
		client.closeSend()
	}

	closed := len(h.allClients)
	h.clients = make(map[string]map[*Client]struct{})
	h.allClients = make(map[*Client]struct{})
	h.metrics.ActiveConnections.Store(0)
	metrics.Get().WebSocketConnections.WithLabelValues().Set(0)

	logger.Log.Info("Closed WebSocket connections during shutdown", zap.Int("count", closed))
}

// GetRateLimitConfig returns the current rate limit configuration
func (h *Hub) GetRateLimitConfig() RateLimitConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rateLimitConfig
}
