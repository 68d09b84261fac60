package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/auth"
	"github.com/prohub/nexus/backend/internal/cache"
	"github.com/prohub/nexus/backend/internal/config"
	"github.com/prohub/nexus/backend/internal/database"
	"github.com/prohub/nexus/backend/internal/email"
	"github.com/prohub/nexus/backend/internal/kernel"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/metrics"
	"github.com/prohub/nexus/backend/internal/moderation"
	"github.com/prohub/nexus/backend/internal/presence"
	"github.com/prohub/nexus/backend/internal/queue"
	"github.com/prohub/nexus/backend/internal/repository"
	"github.com/prohub/nexus/backend/internal/telemetry"
	"github.com/prohub/nexus/backend/internal/validation"
	"github.com/prohub/nexus/backend/internal/websocket"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== Nexus server starting ===",
		zap.String("environment", cfg.Server.Environment),
		zap.String("presence_store", cfg.Presence.Store),
	)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	k := kernel.New().SetLogger(logger.Log)

	tp, err := telemetry.InitTracer(cfg.Telemetry, cfg.Server.Environment)
	if err != nil {
		logger.Log.Warn("Tracing disabled", zap.Error(err))
	}
	k.OnCleanup(func(ctx context.Context) error { return telemetry.Shutdown(ctx, tp) })

	// Initialize database
	db, err := database.Open(cfg.Database, cfg.Server.Environment)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.MigrateDB(db); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}
	database.DB = db
	k.SetDB(db).OnCleanup(func(context.Context) error { return database.Close() })

	pools := metrics.NewPoolReporter(15 * time.Second)
	if sqlDB, err := db.DB(); err == nil {
		pools.AddDatabase(cfg.Database.Driver, metrics.SQLPool(sqlDB))
	}

	// Redis is optional; rate limits fall back to per-process buckets
	var redisClient *cache.RedisClient
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password)
		if err != nil {
			if cfg.Presence.Store == "redis" {
				logger.Log.Fatal("Redis is required for the presence store", zap.Error(err))
			}
			logger.Log.Warn("Redis unavailable, continuing without it", zap.Error(err))
			redisClient = nil
		} else {
			pools.AddRedis("default", redisClient.OpenConnections)
			k.SetCache(redisClient).OnCleanup(func(context.Context) error { return redisClient.Close() })
		}
	}

	poolCtx, stopPools := context.WithCancel(context.Background())
	go pools.Run(poolCtx)
	k.OnCleanup(func(context.Context) error { stopPools(); return nil })

	users := repository.NewUserRepository(db)
	notifications := repository.NewNotificationRepository(db)
	k.SetRepositories(users, notifications)

	authService := auth.NewService(cfg.Server.JWTSecret)
	k.SetAuthService(authService)

	// WebSocket hub carries live counts and moderation notices
	wsHub := websocket.NewHub()
	go wsHub.Run()

	var mailer queue.Mailer
	var emailService *email.EmailService
	if cfg.Notifications.EmailEnabled() {
		emailService, err = email.NewEmailService(
			cfg.Notifications.SESRegion,
			cfg.Notifications.FromEmail,
			cfg.Notifications.FromName,
			cfg.Notifications.BaseURL,
		)
		if err != nil {
			logger.Log.Warn("Email notices disabled", zap.Error(err))
			emailService = nil
		} else {
			mailer = emailService
		}
	}

	notifyQueue := queue.NewNotificationQueue(notifications, users, wsHub, mailer, queue.NotificationQueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
	})
	notifyQueue.Start()
	k.SetNotificationQueue(notifyQueue).OnCleanup(notifyQueue.Stop)

	// Moderation
	rules, err := moderation.LoadRules(cfg.Moderation.RulesFile)
	if err != nil {
		logger.Log.Fatal("Failed to load moderation rules", zap.Error(err))
	}
	classifier, err := moderation.NewClassifier(rules)
	if err != nil {
		logger.Log.Fatal("Failed to build classifier", zap.Error(err))
	}
	scanner, err := moderation.NewStrictScanner(rules)
	if err != nil {
		logger.Log.Fatal("Failed to build scanner", zap.Error(err))
	}
	contentStore := moderation.NewGormContentStore(db)
	screener := moderation.NewScreener(moderation.NewBypassPolicy(users), classifier)
	workflow := moderation.NewWorkflow(contentStore, notifyQueue, users)
	gate := moderation.NewAutoGate(scanner, contentStore)
	k.SetModeration(screener, workflow, gate)

	// Presence
	var presenceStore presence.Store
	switch cfg.Presence.Store {
	case "redis":
		presenceStore = presence.NewRedisStore(redisClient.Client(), cfg.Presence.SessionTTL)
	case "memory":
		presenceStore = presence.NewMemoryStore()
	default:
		presenceStore = presence.NewGormStore(db)
	}
	aggregator := presence.NewAggregator(presenceStore, users, presence.Config{
		SessionTTL:   cfg.Presence.SessionTTL,
		VisibleLimit: cfg.Presence.VisibleLimit,
		StoreName:    cfg.Presence.Store,
	})
	aggregator.SetPublisher(wsHub)
	k.SetPresence(aggregator)

	wsHandler := websocket.NewHandler(wsHub, authService, aggregator, cfg.Server.CORSOrigins)
	wsHandler.RegisterDefaultHandlers()
	k.SetWebSocketHandler(wsHandler).OnCleanup(wsHandler.Shutdown)

	services := validation.NewServiceValidator().
		Register(validation.ServiceDatabase, func(ctx context.Context) error { return database.Health() })
	if redisClient != nil {
		services.Register(validation.ServiceRedis, redisClient.Ping)
	} else {
		services.Register(validation.ServiceRedis, nil)
	}
	if emailService != nil {
		services.Register(validation.ServiceEmail, emailService.CheckAccess)
	} else {
		services.Register(validation.ServiceEmail, nil)
	}
	if err := services.ValidateServices(context.Background()); err != nil {
		logger.Log.Fatal("Required service unavailable", zap.Error(err))
	}

	if err := k.Validate(); err != nil {
		logger.Log.Fatal("Kernel validation failed", zap.Error(err))
	}

	r := newRouter(cfg, k)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info("Nexus backend listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := k.Cleanup(ctx); err != nil {
		logger.Log.Warn("Cleanup finished with errors", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}
