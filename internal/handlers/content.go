package handlers

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	apierrors "github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxTitleLength   = 200
	maxContentLength = 20000
)

// CreateTopicRequest is the body of a new topic
type CreateTopicRequest struct {
	CategoryID string `json:"category_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
}

// CreatePostRequest is the body of a reply
type CreatePostRequest struct {
	Content string `json:"content"`
}

// CreateTopic screens, stores and auto-scans a new topic
// POST /api/v1/topics
func (h *Handlers) CreateTopic(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid topic body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" {
		util.RespondValidationError(c, "title", "title is required")
		return
	}
	if utf8.RuneCountInString(req.Title) > maxTitleLength {
		util.RespondValidationError(c, "title", "title is too long")
		return
	}
	if utf8.RuneCountInString(req.Content) > maxContentLength {
		util.RespondValidationError(c, "content", "content is too long")
		return
	}

	body := util.FlattenQuotes(req.Content)
	screened := strings.TrimSpace(req.Title + " " + body)
	verdict, bypassed := h.screener.Screen(c.Request.Context(), userID, screened)
	recordVerdict(verdict, bypassed)
	if !verdict.IsClean {
		util.RespondWithAPIError(c, apierrors.ContentBlocked(verdict.Reason).WithDetails("topic"))
		return
	}

	topic := &models.Topic{
		UserID:     userID,
		CategoryID: req.CategoryID,
		Title:      req.Title,
		Content:    req.Content,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(topic).Error; err != nil {
		util.RespondWithAPIError(c, apierrors.Upstream("content store", err))
		return
	}

	logger.Log.Info("Topic created",
		logger.WithUserID(userID),
		logger.WithContent(string(models.ContentTopic), topic.ID),
		zap.Bool("bypassed", bypassed),
	)

	resp := gin.H{"topic": topic, "moderated": false}
	if h.gate != nil && !bypassed {
		result, err := h.gate.Scan(c.Request.Context(), topic.ID, topic.Title, body)
		if err != nil {
			// the topic stays visible
			logger.Log.Warn("Automatic scan failed",
				logger.WithContent(string(models.ContentTopic), topic.ID),
				zap.Error(err),
			)
		} else if result.Moderated {
			topic.IsHidden = true
			resp["moderated"] = true
			resp["moderation_reason"] = result.Reason
		}
	}

	c.JSON(http.StatusCreated, resp)
}

// CreatePost screens and stores a reply to a visible topic
// POST /api/v1/topics/:id/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	topicID := c.Param("id")

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid post body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		util.RespondValidationError(c, "content", "content is required")
		return
	}
	if utf8.RuneCountInString(req.Content) > maxContentLength {
		util.RespondValidationError(c, "content", "content is too long")
		return
	}

	var topic models.Topic
	err := h.db.WithContext(c.Request.Context()).
		Select("id", "is_hidden").
		Where("id = ?", topicID).
		First(&topic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && topic.IsHidden) {
		util.RespondNotFound(c, "topic")
		return
	}
	if err != nil {
		util.RespondWithAPIError(c, apierrors.Upstream("content store", err))
		return
	}

	verdict, bypassed := h.screener.Screen(c.Request.Context(), userID, util.FlattenQuotes(req.Content))
	recordVerdict(verdict, bypassed)
	if !verdict.IsClean {
		util.RespondWithAPIError(c, apierrors.ContentBlocked(verdict.Reason).WithDetails("post"))
		return
	}

	post := &models.Post{
		TopicID: topic.ID,
		UserID:  userID,
		Content: req.Content,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(post).Error; err != nil {
		util.RespondWithAPIError(c, apierrors.Upstream("content store", err))
		return
	}

	logger.Log.Info("Post created",
		logger.WithUserID(userID),
		logger.WithContent(string(models.ContentPost), post.ID),
		zap.String("topic_id", topic.ID),
	)

	c.JSON(http.StatusCreated, gin.H{
		"post":         post,
		"content_html": util.RenderQuotes(post.Content),
	})
}
