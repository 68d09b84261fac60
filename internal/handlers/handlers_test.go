package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/database"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/middleware"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/moderation"
	"github.com/prohub/nexus/backend/internal/presence"
	"github.com/prohub/nexus/backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", "")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type recordingNotifier struct {
	mu      sync.Mutex
	intents []moderation.NotificationIntent
}

func (n *recordingNotifier) Enqueue(intent moderation.NotificationIntent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
	return nil
}

func (n *recordingNotifier) sent() []moderation.NotificationIntent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]moderation.NotificationIntent(nil), n.intents...)
}

// HandlersTestSuite runs the API against an in-memory SQLite database
type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	handlers *Handlers
	notifier *recordingNotifier

	member    *models.User
	newbie    *models.User
	pro       *models.User
	moderator *models.User
}

func (suite *HandlersTestSuite) SetupTest() {
	dsn := fmt.Sprintf("file:handlers_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	suite.Require().NoError(err)
	sqlDB, err := db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	suite.Require().NoError(database.MigrateDB(db))
	suite.db = db

	users := repository.NewUserRepository(db)
	rules := moderation.DefaultRules()
	classifier, err := moderation.NewClassifier(rules)
	suite.Require().NoError(err)
	scanner, err := moderation.NewStrictScanner(rules)
	suite.Require().NoError(err)

	store := moderation.NewGormContentStore(db)
	suite.notifier = &recordingNotifier{}

	suite.handlers = NewHandlers(db, users, repository.NewNotificationRepository(db))
	suite.handlers.SetModeration(
		moderation.NewScreener(moderation.NewBypassPolicy(users), classifier),
		moderation.NewWorkflow(store, suite.notifier, users),
		moderation.NewAutoGate(scanner, store),
	)
	suite.handlers.SetPresence(presence.NewAggregator(presence.NewMemoryStore(), users, presence.Config{StoreName: "memory"}))

	suite.member = suite.createUser("member", models.RoleMember)
	suite.newbie = suite.createUser("newbie", models.RoleNewbie)
	suite.pro = suite.createUser("pro", models.RolePro)
	suite.moderator = suite.createUser("moderator", models.RoleModerator)

	suite.router = gin.New()
	suite.setupRoutes(users)
}

func (suite *HandlersTestSuite) TearDownTest() {
	if sqlDB, err := suite.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// setupRoutes configures the test router
func (suite *HandlersTestSuite) setupRoutes(users repository.UserRepository) {
	// Auth middleware that sets user_id from header
	authMiddleware := func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Set("user_id", userID)
		c.Next()
	}
	optionalAuth := func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}

	suite.router.GET("/health", suite.handlers.Health)

	api := suite.router.Group("/api/v1")
	api.POST("/presence/heartbeat", optionalAuth, suite.handlers.Heartbeat)
	api.GET("/presence/schedule", suite.handlers.PresenceSchedule)
	api.POST("/moderation/classify", optionalAuth, suite.handlers.Classify)

	authed := api.Group("", authMiddleware)
	authed.POST("/topics", suite.handlers.CreateTopic)
	authed.POST("/topics/:id/posts", suite.handlers.CreatePost)
	authed.GET("/notifications", suite.handlers.GetNotifications)
	authed.POST("/notifications/read", suite.handlers.MarkNotificationsRead)
	authed.POST("/notifications/:id/read", suite.handlers.MarkNotificationRead)

	mod := authed.Group("/moderation", middleware.RequireRole(users, models.RoleModerator))
	mod.GET("/:type", suite.handlers.ListModeratedContent)
	mod.POST("/:type/:id/hide", suite.handlers.HideContent)
	mod.POST("/:type/:id/unhide", suite.handlers.UnhideContent)
	mod.GET("/:type/:id/history", suite.handlers.GetModerationHistory)
}

func (suite *HandlersTestSuite) createUser(username string, role models.UserRole) *models.User {
	u := &models.User{
		Email:       username + "@example.com",
		Username:    username,
		DisplayName: username,
		Role:        role,
	}
	require.NoError(suite.T(), suite.db.Create(u).Error)
	return u
}

func (suite *HandlersTestSuite) createTopic(author *models.User, title, content string) *models.Topic {
	topic := &models.Topic{UserID: author.ID, Title: title, Content: content}
	require.NoError(suite.T(), suite.db.Create(topic).Error)
	return topic
}

func (suite *HandlersTestSuite) do(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(suite.T(), err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// =============================================================================
// HEALTH / PRESENCE
// =============================================================================

func (suite *HandlersTestSuite) TestHealth() {
	w := suite.do("GET", "/health", "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	resp := decode(suite.T(), w)
	assert.Equal(suite.T(), "healthy", resp["status"])
}

func (suite *HandlersTestSuite) TestHeartbeatCountsUsersAndGuests() {
	t := suite.T()

	w := suite.do("POST", "/api/v1/presence/heartbeat", "", gin.H{"session_id": "guest-1", "current_page": "/forum"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = suite.do("POST", "/api/v1/presence/heartbeat", suite.member.ID, gin.H{"session_id": "member-1", "current_page": "/topics/1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	counts := resp["counts"].(map[string]interface{})
	assert.Equal(t, float64(1), counts["users"])
	assert.Equal(t, float64(1), counts["guests"])
	assert.Equal(t, float64(2), counts["total"])

	schedule := resp["schedule"].(map[string]interface{})
	assert.Equal(t, float64(30), schedule["heartbeat_interval_seconds"])

	online := resp["online_users"].([]interface{})
	assert.NotEmpty(t, online)
}

func (suite *HandlersTestSuite) TestHeartbeatSessionFromHeader() {
	req, _ := http.NewRequest("POST", "/api/v1/presence/heartbeat", bytes.NewBufferString(`{"current_page":"/"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SessionHeader, "header-session")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())
}

func (suite *HandlersTestSuite) TestHeartbeatMissingSession() {
	w := suite.do("POST", "/api/v1/presence/heartbeat", "", gin.H{"current_page": "/"})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code)
	resp := decode(suite.T(), w)
	assert.NotContains(suite.T(), resp, "counts")
}

func (suite *HandlersTestSuite) TestPresenceSchedule() {
	w := suite.do("GET", "/api/v1/presence/schedule", "", nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	resp := decode(suite.T(), w)
	assert.Equal(suite.T(), float64(300), resp["session_ttl_seconds"])
}

// =============================================================================
// CLASSIFY / SUBMISSION
// =============================================================================

func (suite *HandlersTestSuite) TestClassifyFlagsCaps() {
	w := suite.do("POST", "/api/v1/moderation/classify", suite.newbie.ID, gin.H{"text": "THIS IS ALL SHOUTING TEXT"})
	require.Equal(suite.T(), http.StatusOK, w.Code)
	resp := decode(suite.T(), w)
	assert.Equal(suite.T(), false, resp["is_clean"])
	assert.Equal(suite.T(), moderation.ReasonExcessiveCaps, resp["reason"])
	assert.Equal(suite.T(), false, resp["bypassed"])
}

func (suite *HandlersTestSuite) TestClassifyBypassForPro() {
	w := suite.do("POST", "/api/v1/moderation/classify", suite.pro.ID, gin.H{"text": "THIS IS ALL SHOUTING TEXT"})
	require.Equal(suite.T(), http.StatusOK, w.Code)
	resp := decode(suite.T(), w)
	assert.Equal(suite.T(), true, resp["is_clean"])
	assert.Equal(suite.T(), true, resp["bypassed"])
}

func (suite *HandlersTestSuite) TestClassifyAnonymous() {
	w := suite.do("POST", "/api/v1/moderation/classify", "", gin.H{"text": "СТАВКА на спорт!!!"})
	require.Equal(suite.T(), http.StatusOK, w.Code)
	resp := decode(suite.T(), w)
	assert.Equal(suite.T(), false, resp["is_clean"])
	assert.Equal(suite.T(), moderation.ReasonProhibited, resp["reason"])
}

func (suite *HandlersTestSuite) TestCreateTopic() {
	t := suite.T()
	w := suite.do("POST", "/api/v1/topics", suite.member.ID, gin.H{
		"title":   "Mixing tips",
		"content": "How do you balance low end in a small room?",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, false, resp["moderated"])

	var count int64
	suite.db.Model(&models.Topic{}).Where("user_id = ?", suite.member.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func (suite *HandlersTestSuite) TestCreateTopicBlockedIsNotPersisted() {
	t := suite.T()
	w := suite.do("POST", "/api/v1/topics", suite.newbie.ID, gin.H{
		"title":   "Лучшее казино",
		"content": "заходите",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, "CONTENT_BLOCKED", resp["code"])

	var count int64
	suite.db.Model(&models.Topic{}).Count(&count)
	assert.Zero(t, count)
}

func (suite *HandlersTestSuite) TestCreateTopicAutoModerated() {
	t := suite.T()
	w := suite.do("POST", "/api/v1/topics", suite.member.ID, gin.H{
		"title":   "Selling my old synth",
		"content": "Write to me on telegram or call +7 999 123 45 67 for details",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, true, resp["moderated"])
	assert.Equal(t, moderation.AutoReasonPrefix+moderation.ReasonAdvertisement, resp["moderation_reason"])

	topic := resp["topic"].(map[string]interface{})
	var stored models.Topic
	require.NoError(t, suite.db.First(&stored, "id = ?", topic["id"]).Error)
	assert.True(t, stored.IsHidden)

	var logs []models.ModerationLog
	require.NoError(t, suite.db.Where("content_id = ?", stored.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].ModeratorID)
	assert.Empty(t, suite.notifier.sent())
}

func (suite *HandlersTestSuite) TestCreateTopicValidation() {
	w := suite.do("POST", "/api/v1/topics", suite.member.ID, gin.H{"title": "  ", "content": "body"})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code)

	w = suite.do("POST", "/api/v1/topics", "", gin.H{"title": "t", "content": "body"})
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestCreatePost() {
	t := suite.T()
	topic := suite.createTopic(suite.member, "Synths", "Which one?")

	w := suite.do("POST", "/api/v1/topics/"+topic.ID+"/posts", suite.newbie.ID, gin.H{
		"content": "[quote=member]Which one?[/quote]The one you can afford",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Contains(t, resp["content_html"], "<blockquote><cite>member</cite>")
}

func (suite *HandlersTestSuite) TestCreatePostQuotedSpamIsBlocked() {
	t := suite.T()
	topic := suite.createTopic(suite.member, "Report", "Look at this")
	w := suite.do("POST", "/api/v1/topics/"+topic.ID+"/posts", suite.newbie.ID, gin.H{
		"content": "[quote=купите]КУПИТЕ казино viagra http://spam.example.com[/quote]",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, "CONTENT_BLOCKED", decode(t, w)["code"])

	var count int64
	suite.db.Model(&models.Post{}).Where("topic_id = ?", topic.ID).Count(&count)
	assert.Zero(t, count)
}

func (suite *HandlersTestSuite) TestCreatePostQuoteAuthorIsScreened() {
	t := suite.T()
	topic := suite.createTopic(suite.member, "Report", "Look at this")
	w := suite.do("POST", "/api/v1/topics/"+topic.ID+"/posts", suite.newbie.ID, gin.H{
		"content": "[quote=казино]hello[/quote]thanks",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	var count int64
	suite.db.Model(&models.Post{}).Where("topic_id = ?", topic.ID).Count(&count)
	assert.Zero(t, count)
}

func (suite *HandlersTestSuite) TestCreateTopicQuotedSpamIsBlocked() {
	t := suite.T()
	w := suite.do("POST", "/api/v1/topics", suite.member.ID, gin.H{
		"title":   "Found this",
		"content": "[quote]Лучшее казино[/quote]someone posted this in another thread",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, "CONTENT_BLOCKED", decode(t, w)["code"])

	var count int64
	suite.db.Model(&models.Topic{}).Count(&count)
	assert.Zero(t, count)
}

func (suite *HandlersTestSuite) TestCreateTopicCleanQuotePassesGate() {
	t := suite.T()
	w := suite.do("POST", "/api/v1/topics", suite.member.ID, gin.H{
		"title":   "Room treatment",
		"content": "[quote=pro]Bass traps first, then diffusion[/quote]Does this hold for small rooms too?",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	assert.Equal(t, false, resp["moderated"])

	topic := resp["topic"].(map[string]interface{})
	var stored models.Topic
	require.NoError(t, suite.db.First(&stored, "id = ?", topic["id"]).Error)
	assert.False(t, stored.IsHidden)
}

func (suite *HandlersTestSuite) TestCreatePostHiddenTopic() {
	topic := suite.createTopic(suite.member, "Hidden", "gone")
	suite.db.Model(&models.Topic{}).Where("id = ?", topic.ID).Update("is_hidden", true)

	w := suite.do("POST", "/api/v1/topics/"+topic.ID+"/posts", suite.member.ID, gin.H{"content": "hello"})
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	w = suite.do("POST", "/api/v1/topics/missing/posts", suite.member.ID, gin.H{"content": "hello"})
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

// =============================================================================
// MODERATION
// =============================================================================

func (suite *HandlersTestSuite) TestHideRequiresModerator() {
	topic := suite.createTopic(suite.member, "Topic", "body")
	w := suite.do("POST", "/api/v1/moderation/topic/"+topic.ID+"/hide", suite.member.ID, gin.H{"reason": "spam"})
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestHideThenHistory() {
	t := suite.T()
	topic := suite.createTopic(suite.member, "Topic", "body")

	w := suite.do("POST", "/api/v1/moderation/topic/"+topic.ID+"/hide", suite.moderator.ID, gin.H{"reason": "spam"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored models.Topic
	require.NoError(t, suite.db.First(&stored, "id = ?", topic.ID).Error)
	assert.True(t, stored.IsHidden)

	sent := suite.notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, suite.member.ID, sent[0].UserID)
	assert.Equal(t, "spam", sent[0].Reason)

	w = suite.do("GET", "/api/v1/moderation/topic/"+topic.ID+"/history", suite.moderator.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	history := resp["history"].([]interface{})
	require.Len(t, history, 1)
	entry := history[0].(map[string]interface{})
	assert.Equal(t, "spam", entry["reason"])
	assert.Equal(t, suite.moderator.ID, entry["moderator_id"])
}

func (suite *HandlersTestSuite) TestHideEmptyReason() {
	t := suite.T()
	topic := suite.createTopic(suite.member, "Topic", "body")

	w := suite.do("POST", "/api/v1/moderation/topic/"+topic.ID+"/hide", suite.moderator.ID, gin.H{"reason": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var logs int64
	suite.db.Model(&models.ModerationLog{}).Count(&logs)
	assert.Zero(t, logs)
}

func (suite *HandlersTestSuite) TestHideUnknownContent() {
	w := suite.do("POST", "/api/v1/moderation/topic/missing/hide", suite.moderator.ID, gin.H{"reason": "spam"})
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	w = suite.do("POST", "/api/v1/moderation/wiki/x/hide", suite.moderator.ID, gin.H{"reason": "spam"})
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlersTestSuite) TestUnhideWithoutBody() {
	t := suite.T()
	topic := suite.createTopic(suite.member, "Topic", "body")
	suite.db.Model(&models.Topic{}).Where("id = ?", topic.ID).Update("is_hidden", true)

	w := suite.do("POST", "/api/v1/moderation/topic/"+topic.ID+"/unhide", suite.moderator.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var logs []models.ModerationLog
	require.NoError(t, suite.db.Where("content_id = ?", topic.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].Reason)
	require.NotNil(t, logs[0].ModeratorID)
	assert.Equal(t, suite.moderator.ID, *logs[0].ModeratorID)
}

func (suite *HandlersTestSuite) TestListModeratedContent() {
	t := suite.T()
	visible := suite.createTopic(suite.member, "Visible topic", "[quote]old[/quote]fresh text")
	hidden := suite.createTopic(suite.member, "Hidden topic", "body")
	suite.db.Model(&models.Topic{}).Where("id = ?", hidden.ID).Update("is_hidden", true)

	w := suite.do("GET", "/api/v1/moderation/topic?status=hidden", suite.moderator.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	items := decode(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, hidden.ID, items[0].(map[string]interface{})["id"])

	w = suite.do("GET", "/api/v1/moderation/topic?status=active", suite.moderator.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items = decode(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	row := items[0].(map[string]interface{})
	assert.Equal(t, visible.ID, row["id"])
	assert.Equal(t, "fresh text", row["body"])

	w = suite.do("GET", "/api/v1/moderation/topic?status=bogus", suite.moderator.ID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (suite *HandlersTestSuite) TestNotifications() {
	t := suite.T()
	repo := repository.NewNotificationRepository(suite.db)
	ctx := suite.T().Context()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{
			UserID:    suite.member.ID,
			Type:      models.NotificationContentHidden,
			Title:     fmt.Sprintf("Hidden %d", i),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	w := suite.do("GET", "/api/v1/notifications?limit=2", suite.member.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, float64(3), resp["unread"])
	list := resp["notifications"].([]interface{})
	require.Len(t, list, 2)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "Hidden 2", first["title"])

	w = suite.do("POST", "/api/v1/notifications/"+first["id"].(string)+"/read", suite.member.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = suite.do("POST", "/api/v1/notifications/"+first["id"].(string)+"/read", suite.newbie.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = suite.do("POST", "/api/v1/notifications/read", suite.member.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["updated"])
}

// =============================================================================
// RUN SUITE
// =============================================================================

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
