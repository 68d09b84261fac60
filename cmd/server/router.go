package main

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/config"
	"github.com/prohub/nexus/backend/internal/handlers"
	"github.com/prohub/nexus/backend/internal/kernel"
	"github.com/prohub/nexus/backend/internal/middleware"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const wsPath = "/api/v1/presence/ws"

// newRouter builds the HTTP API from the services registered on k
func newRouter(cfg *config.Config, k *kernel.Kernel) *gin.Engine {
	users := k.Users()
	redisClient := k.Cache()
	wsHandler := k.WebSocket()

	h := handlers.NewHandlers(k.DB(), users, k.Notifications())
	h.SetModeration(k.Screener(), k.Workflow(), k.AutoGate())
	h.SetPresence(k.Presence())
	h.SetRedisClient(redisClient)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	if cfg.Telemetry.Enabled {
		r.Use(middleware.TracingMiddleware(telemetry.ServiceName))
	}
	r.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.SessionHeader}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{wsPath})))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(k.Auth())
	optionalAuth := middleware.OptionalAuthMiddleware(k.Auth())

	api := r.Group("/api/v1")
	{
		presenceGroup := api.Group("/presence")
		{
			heartbeat := []gin.HandlerFunc{optionalAuth}
			if cfg.Presence.HeartbeatLimit > 0 {
				heartbeat = append(heartbeat,
					middleware.RedisRateLimitMiddleware(redisClient, middleware.HeartbeatRateLimitConfig(cfg.Presence.HeartbeatLimit)),
					middleware.RedisRateLimitMiddleware(redisClient, middleware.HeartbeatIPRateLimitConfig(cfg.Presence.HeartbeatLimit)),
				)
			}
			presenceGroup.POST("/heartbeat", append(heartbeat, h.Heartbeat)...)
			presenceGroup.GET("/schedule", h.PresenceSchedule)

			// auth via query param ?token=... or Authorization header, optional
			if wsHandler != nil {
				presenceGroup.GET("/ws", wsHandler.HandleWebSocket)
			}
		}

		api.POST("/moderation/classify",
			optionalAuth,
			middleware.RedisRateLimitMiddleware(redisClient, middleware.ClassifyRateLimitConfig()),
			h.Classify,
		)

		authed := api.Group("", authMiddleware)
		{
			authed.POST("/topics", h.CreateTopic)
			authed.POST("/topics/:id/posts", h.CreatePost)

			authed.GET("/notifications", h.GetNotifications)
			authed.POST("/notifications/read", h.MarkNotificationsRead)
			authed.POST("/notifications/:id/read", h.MarkNotificationRead)
		}

		mod := authed.Group("/moderation", middleware.RequireRole(users, models.RoleModerator))
		{
			mod.GET("/:type", h.ListModeratedContent)
			mod.POST("/:type/:id/hide", h.HideContent)
			mod.POST("/:type/:id/unhide", h.UnhideContent)
			mod.GET("/:type/:id/history", h.GetModerationHistory)
		}

		if wsHandler != nil {
			authed.GET("/ws/metrics", middleware.RequireRole(users, models.RoleAdmin), wsHandler.HandleMetrics)
		}
	}

	return r
}
