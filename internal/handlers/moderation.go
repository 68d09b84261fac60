package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/metrics"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/moderation"
	"github.com/prohub/nexus/backend/internal/util"
)

// ClassifyRequest carries text to screen before submission
type ClassifyRequest struct {
	Text string `json:"text"`
}

// Classify screens text for the caller without persisting anything
// POST /api/v1/moderation/classify
func (h *Handlers) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid classify body")
		return
	}

	verdict, bypassed := h.screener.Screen(c.Request.Context(), c.GetString("user_id"), req.Text)
	recordVerdict(verdict, bypassed)

	c.JSON(http.StatusOK, gin.H{
		"is_clean": verdict.IsClean,
		"reason":   verdict.Reason,
		"bypassed": bypassed,
	})
}

// ModerationActionRequest is the body of hide and unhide
type ModerationActionRequest struct {
	Reason string `json:"reason"`
}

// HideContent hides a content item and notifies its author
// POST /api/v1/moderation/:type/:id/hide
func (h *Handlers) HideContent(c *gin.Context) {
	ref, err := moderation.ParseReference(c.Param("type"), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	var req ModerationActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid moderation body")
		return
	}

	moderatorID := util.OptionalUserID(c)
	if err := h.workflow.Hide(c.Request.Context(), ref, req.Reason, moderatorID); err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content_type": ref.ContentType,
		"content_id":   ref.ContentID,
		"is_hidden":    true,
	})
}

// UnhideContent restores a hidden content item
// POST /api/v1/moderation/:type/:id/unhide
func (h *Handlers) UnhideContent(c *gin.Context) {
	ref, err := moderation.ParseReference(c.Param("type"), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}
	// The body is optional for unhide.
	var req ModerationActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.RespondBadRequest(c, "invalid moderation body")
			return
		}
	}

	ctx := moderation.WithModerator(c.Request.Context(), c.GetString("user_id"))
	if err := h.workflow.Unhide(ctx, ref, util.OptionalString(req.Reason)); err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"content_type": ref.ContentType,
		"content_id":   ref.ContentID,
		"is_hidden":    false,
	})
}

// GetModerationHistory returns the audit trail of one item newest first
// GET /api/v1/moderation/:type/:id/history
func (h *Handlers) GetModerationHistory(c *gin.Context) {
	ref, err := moderation.ParseReference(c.Param("type"), c.Param("id"))
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	history, err := h.workflow.GetHistory(c.Request.Context(), ref)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"history": history,
		"count":   len(history),
	})
}

// ListModeratedContent lists content of one type for the moderation queue
// GET /api/v1/moderation/:type?status=hidden&search=foo&preview=200
func (h *Handlers) ListModeratedContent(c *gin.Context) {
	filter := moderation.ListFilter{
		Status: moderation.StatusFilter(strings.ToLower(c.Query("status"))),
		Search: strings.TrimSpace(c.Query("search")),
	}
	rows, err := h.workflow.ListModeratedContent(c.Request.Context(), models.ContentType(c.Param("type")), filter)
	if err != nil {
		util.RespondWithError(c, err)
		return
	}

	previewLen := util.ClampLimit(c.Query("preview"), 200, 1000)
	for i := range rows {
		rows[i].Body = util.Preview(rows[i].Body, previewLen)
	}

	c.JSON(http.StatusOK, gin.H{
		"items": rows,
		"meta": gin.H{
			"status": filter.Status,
			"search": filter.Search,
			"count":  len(rows),
			"limit":  moderation.MaxListResults,
		},
	})
}

func recordVerdict(v moderation.Verdict, bypassed bool) {
	result := "clean"
	switch {
	case bypassed:
		result = "bypassed"
	case !v.IsClean:
		result = "flagged"
	}
	metrics.Get().ClassificationsTotal.WithLabelValues(result, v.Reason).Inc()
}
