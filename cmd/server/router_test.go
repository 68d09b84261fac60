package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/auth"
	"github.com/prohub/nexus/backend/internal/config"
	"github.com/prohub/nexus/backend/internal/database"
	"github.com/prohub/nexus/backend/internal/kernel"
	"github.com/prohub/nexus/backend/internal/moderation"
	"github.com/prohub/nexus/backend/internal/presence"
	"github.com/prohub/nexus/backend/internal/repository"
	"github.com/prohub/nexus/backend/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testKernel(t *testing.T) *kernel.Kernel {
	dsn := fmt.Sprintf("file:router_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	rules := moderation.DefaultRules()
	classifier, err := moderation.NewClassifier(rules)
	require.NoError(t, err)
	scanner, err := moderation.NewStrictScanner(rules)
	require.NoError(t, err)
	store := moderation.NewGormContentStore(db)
	tokens := auth.NewService([]byte("router-secret"))
	aggregator := presence.NewAggregator(presence.NewMemoryStore(), users, presence.Config{StoreName: "memory"})

	k := kernel.New().
		SetLogger(zap.NewNop()).
		SetDB(db).
		SetRepositories(users, repository.NewNotificationRepository(db)).
		SetAuthService(tokens).
		SetModeration(
			moderation.NewScreener(moderation.NewBypassPolicy(users), classifier),
			moderation.NewWorkflow(store, nil, users),
			moderation.NewAutoGate(scanner, store),
		).
		SetPresence(aggregator).
		SetWebSocketHandler(websocket.NewHandler(websocket.NewHub(), tokens, aggregator, nil))
	require.NoError(t, k.Validate())
	return k
}

func TestNewRouterServesKernelServices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	cfg.Presence.HeartbeatLimit = 10
	r := newRouter(cfg, testKernel(t))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/api/v1/presence/schedule", http.StatusOK},
		{"POST", "/api/v1/topics", http.StatusUnauthorized},
		{"GET", "/api/v1/moderation/topic", http.StatusUnauthorized},
		{"GET", "/api/v1/ws/metrics", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
