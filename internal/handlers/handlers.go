package handlers

import (
	"github.com/prohub/nexus/backend/internal/cache"
	"github.com/prohub/nexus/backend/internal/moderation"
	"github.com/prohub/nexus/backend/internal/presence"
	"github.com/prohub/nexus/backend/internal/repository"
	"gorm.io/gorm"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db            *gorm.DB
	users         repository.UserRepository
	notifications repository.NotificationRepository

	screener *moderation.Screener
	workflow *moderation.Workflow
	gate     *moderation.AutoGate

	presence *presence.Aggregator
	redis    *cache.RedisClient
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *gorm.DB, users repository.UserRepository, notifications repository.NotificationRepository) *Handlers {
	return &Handlers{
		db:            db,
		users:         users,
		notifications: notifications,
	}
}

// SetModeration sets the screening, workflow and automatic gate services
func (h *Handlers) SetModeration(screener *moderation.Screener, workflow *moderation.Workflow, gate *moderation.AutoGate) {
	h.screener = screener
	h.workflow = workflow
	h.gate = gate
}

// SetPresence sets the presence aggregator
func (h *Handlers) SetPresence(aggregator *presence.Aggregator) {
	h.presence = aggregator
}

// SetRedisClient sets the Redis client reported by the health check
func (h *Handlers) SetRedisClient(client *cache.RedisClient) {
	h.redis = client
}
