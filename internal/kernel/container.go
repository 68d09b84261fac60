// Package kernel holds the wired services of the forum backend and their shutdown order.
package kernel

import (
	"context"
	"sync"

	"github.com/prohub/nexus/backend/internal/auth"
	"github.com/prohub/nexus/backend/internal/cache"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/moderation"
	"github.com/prohub/nexus/backend/internal/presence"
	"github.com/prohub/nexus/backend/internal/queue"
	"github.com/prohub/nexus/backend/internal/repository"
	"github.com/prohub/nexus/backend/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kernel holds all application dependencies and provides type-safe access.
type Kernel struct {
	// Core infrastructure
	db     *gorm.DB
	logger *zap.Logger
	cache  *cache.RedisClient

	// Repositories
	users         repository.UserRepository
	notifications repository.NotificationRepository

	// Services
	auth      *auth.Service
	screener  *moderation.Screener
	workflow  *moderation.Workflow
	gate      *moderation.AutoGate
	presence  *presence.Aggregator
	wsHandler *websocket.Handler
	queue     *queue.NotificationQueue

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates a new empty kernel.
// Services should be registered using Set* methods.
func New() *Kernel {
	return &Kernel{
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// ============================================================================
// CORE INFRASTRUCTURE
// ============================================================================

// SetDB registers the database connection
func (c *Kernel) SetDB(db *gorm.DB) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.db = db
	return c
}

// DB returns the database connection
func (c *Kernel) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// SetLogger registers the logger
func (c *Kernel) SetLogger(l *zap.Logger) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
	return c
}

func (c *Kernel) loggerLocked() *zap.Logger {
	if c.logger == nil {
		return logger.Log
	}
	return c.logger
}

// SetCache registers the Redis client. Nil means Redis is disabled.
func (c *Kernel) SetCache(client *cache.RedisClient) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = client
	return c
}

// Cache returns the Redis client, or nil when Redis is disabled
func (c *Kernel) Cache() *cache.RedisClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

// ============================================================================
// REPOSITORIES
// ============================================================================

// SetRepositories registers the user and notification repositories
func (c *Kernel) SetRepositories(users repository.UserRepository, notifications repository.NotificationRepository) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = users
	c.notifications = notifications
	return c
}

// Users returns the user repository
func (c *Kernel) Users() repository.UserRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users
}

// Notifications returns the notification repository
func (c *Kernel) Notifications() repository.NotificationRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifications
}

// ============================================================================
// SERVICES
// ============================================================================

// SetAuthService registers the token service
func (c *Kernel) SetAuthService(service *auth.Service) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = service
	return c
}

// Auth returns the token service
func (c *Kernel) Auth() *auth.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// SetModeration registers the screening, workflow and automatic gate services
func (c *Kernel) SetModeration(screener *moderation.Screener, workflow *moderation.Workflow, gate *moderation.AutoGate) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.screener = screener
	c.workflow = workflow
	c.gate = gate
	return c
}

// Screener returns the submission screener
func (c *Kernel) Screener() *moderation.Screener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.screener
}

// Workflow returns the moderation workflow
func (c *Kernel) Workflow() *moderation.Workflow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.workflow
}

// AutoGate returns the automatic moderation gate
func (c *Kernel) AutoGate() *moderation.AutoGate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gate
}

// SetPresence registers the presence aggregator
func (c *Kernel) SetPresence(aggregator *presence.Aggregator) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence = aggregator
	return c
}

// Presence returns the presence aggregator
func (c *Kernel) Presence() *presence.Aggregator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presence
}

// SetWebSocketHandler registers the WebSocket handler
func (c *Kernel) SetWebSocketHandler(handler *websocket.Handler) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wsHandler = handler
	return c
}

// WebSocket returns the WebSocket handler
func (c *Kernel) WebSocket() *websocket.Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wsHandler
}

// SetNotificationQueue registers the author notification queue
func (c *Kernel) SetNotificationQueue(q *queue.NotificationQueue) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = q
	return c
}

// ============================================================================
// LIFECYCLE MANAGEMENT
// ============================================================================

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order (last registered, first cleaned up).
func (c *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup performs graceful shutdown of all registered services.
// Every function runs even if an earlier one fails; the first error is returned.
func (c *Kernel) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](ctx); err != nil {
			c.loggerLocked().Error("Cleanup function failed",
				zap.Int("index", i),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	c.cleanupFuncs = nil
	return first
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate checks that all required dependencies are registered.
// Call it after initialization and before starting the server.
func (c *Kernel) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missingDeps := []string{}

	if c.db == nil {
		missingDeps = append(missingDeps, "database (DB)")
	}
	if c.users == nil || c.notifications == nil {
		missingDeps = append(missingDeps, "repositories")
	}
	if c.auth == nil {
		missingDeps = append(missingDeps, "auth service")
	}
	if c.screener == nil || c.workflow == nil || c.gate == nil {
		missingDeps = append(missingDeps, "moderation services")
	}
	if c.presence == nil {
		missingDeps = append(missingDeps, "presence aggregator")
	}

	if len(missingDeps) > 0 {
		return NewInitializationError("Missing required dependencies", missingDeps)
	}

	if c.cache == nil {
		c.loggerLocked().Info("Redis disabled; rate limits are per process")
	}
	if c.queue == nil {
		c.loggerLocked().Warn("No notification queue registered; authors will not be notified")
	}
	return nil
}
