package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/repository"
	"github.com/prohub/nexus/backend/internal/util"
)

// GetNotifications gets the user's notifications with the unread count
// GET /api/v1/notifications?unread=true&limit=20&offset=0
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	limit := util.ClampLimit(c.Query("limit"), 20, 100)
	offset := util.ParseInt(c.Query("offset"), 0)
	if offset < 0 {
		offset = 0
	}
	unreadOnly := c.Query("unread") == "true"

	notifs, err := h.notifications.ListForUser(c.Request.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		util.RespondWithAPIError(c, apierrors.Upstream("notification store", err))
		return
	}
	unread, err := h.notifications.CountUnread(c.Request.Context(), userID)
	if err != nil {
		util.RespondWithAPIError(c, apierrors.Upstream("notification store", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifs,
		"unread":        unread,
		"meta": gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(notifs),
		},
	})
}

// MarkNotificationRead marks a single notification as read
// POST /api/v1/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	err := h.notifications.MarkRead(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, repository.ErrNotificationNotFound) {
		util.RespondNotFound(c, "notification")
		return
	}
	if err != nil {
		util.RespondWithAPIError(c, apierrors.Upstream("notification store", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// MarkNotificationsRead marks all notifications as read
// POST /api/v1/notifications/read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		util.RespondWithAPIError(c, apierrors.Upstream("notification store", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"updated": updated,
	})
}
