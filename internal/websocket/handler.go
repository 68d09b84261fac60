package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/auth"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/presence"
	"go.uber.org/zap"
)

// Heartbeater is the presence side of the socket
type Heartbeater interface {
	Heartbeat(ctx context.Context, in presence.HeartbeatInput) (*presence.Snapshot, error)
	Schedule() presence.ClientSchedule
}

// Handler handles WebSocket HTTP upgrade requests
type Handler struct {
	hub            *Hub
	tokens         auth.TokenValidator
	presence       Heartbeater
	originPatterns []string
}

// NewHandler creates a new WebSocket handler. originPatterns follow
// websocket.AcceptOptions; "*" accepts any origin.
func NewHandler(hub *Hub, tokens auth.TokenValidator, presence Heartbeater, originPatterns []string) *Handler {
	return &Handler{
		hub:            hub,
		tokens:         tokens,
		presence:       presence,
		originPatterns: originPatterns,
	}
}

// HandleWebSocket upgrades the request. A token (query ?token= or Bearer
// header) is optional: anonymous sockets receive counts only, authenticated
// ones also receive moderation notices.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	var userID, username string
	if token := requestToken(c); token != "" {
		claims, err := h.tokens.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "invalid or expired token",
			})
			return
		}
		userID, username = claims.UserID, claims.Username
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:  h.originPatterns,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Debug("WebSocket upgrade failed", logger.WithIP(c.ClientIP()), zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, userID, username)
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.Request.UserAgent()

	h.hub.Register(client)

	welcome := map[string]interface{}{
		"server_time": time.Now().UTC().UnixMilli(),
	}
	if userID != "" {
		welcome["user_id"] = userID
		welcome["username"] = username
	}
	if h.presence != nil {
		welcome["schedule"] = h.presence.Schedule()
	}
	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{Event: "connected", Data: welcome}))

	go client.WritePump()
	client.ReadPump()
}

func requestToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	const prefix = "Bearer "
	if h := c.GetHeader("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// HandleMetrics returns WebSocket metrics (for monitoring)
func (h *Handler) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket": h.hub.GetMetrics(),
		"counts":    h.hub.LastCounts(),
		"timestamp": time.Now().UTC(),
	})
}

// RegisterDefaultHandlers lets clients send presence heartbeats over the socket
func (h *Handler) RegisterDefaultHandlers() {
	if h.presence == nil {
		return
	}
	h.hub.RegisterHandler(MessageTypeHeartbeat, func(client *Client, msg *Message) error {
		var beat HeartbeatPayload
		if err := msg.ParsePayload(&beat); err != nil {
			return err
		}

		in := presence.HeartbeatInput{
			SessionID:   beat.SessionID,
			CurrentPage: beat.CurrentPage,
			UserAgent:   client.UserAgent,
			SearchQuery: beat.SearchQuery,
		}
		if client.UserID != "" {
			uid := client.UserID
			in.UserID = &uid
		}

		ctx, cancel := context.WithTimeout(client.ctx, 5*time.Second)
		defer cancel()
		snapshot, err := h.presence.Heartbeat(ctx, in)
		if err != nil {
			return err
		}
		return client.Send(NewReply(msg, MessageTypePresence, snapshot))
	})
}

// Shutdown gracefully shuts down the WebSocket handler
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}
