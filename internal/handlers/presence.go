package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/middleware"
	"github.com/prohub/nexus/backend/internal/presence"
	"github.com/prohub/nexus/backend/internal/util"
	"go.uber.org/zap"
)

// HeartbeatRequest is the body of a presence heartbeat
type HeartbeatRequest struct {
	SessionID   string  `json:"session_id"`
	CurrentPage string  `json:"current_page"`
	SearchQuery *string `json:"search_query"`
}

// Heartbeat records the caller's session and returns the live counts
// POST /api/v1/presence/heartbeat
func (h *Handlers) Heartbeat(c *gin.Context) {
	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid heartbeat body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = c.GetHeader(middleware.SessionHeader)
	}

	snapshot, err := h.presence.Heartbeat(c.Request.Context(), presence.HeartbeatInput{
		SessionID:   req.SessionID,
		UserID:      util.OptionalUserID(c),
		CurrentPage: req.CurrentPage,
		UserAgent:   c.Request.UserAgent(),
		SearchQuery: req.SearchQuery,
	})
	if err != nil {
		if apierrors.IsValidation(err) {
			util.RespondWithError(c, err)
			return
		}
		// The client retries on its next scheduled beat.
		logger.Log.Warn("Presence heartbeat failed",
			logger.WithSessionID(presence.SessionHash(req.SessionID)),
			zap.Error(err),
		)
		util.RespondWithAPIError(c, apierrors.Upstream("presence store", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"counts":       snapshot.Counts,
		"online_users": snapshot.OnlineUsers,
		"schedule":     h.presence.Schedule(),
	})
}

// PresenceSchedule returns the heartbeat cadence without recording a beat
// GET /api/v1/presence/schedule
func (h *Handlers) PresenceSchedule(c *gin.Context) {
	c.JSON(http.StatusOK, h.presence.Schedule())
}
