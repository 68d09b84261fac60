package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/cache"
	"github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/util"
	"go.uber.org/zap"
)

// RedisRateLimitMiddleware creates a fixed-window limiter shared by every
// server instance. Without a Redis client it falls back to NewRateLimiter.
func RedisRateLimitMiddleware(client *cache.RedisClient, config RateLimitConfig) gin.HandlerFunc {
	if client == nil {
		logger.Log.Info("Redis unavailable, using in-process rate limiter",
			zap.Int("limit", config.Limit),
			zap.Duration("window", config.Window),
		)
		return NewRateLimiter(config)
	}
	if config.KeyFunc == nil {
		config.KeyFunc = clientIPKey
	}
	prefix := "rate_limit:"
	if config.Scope != "" {
		prefix += config.Scope + ":"
	}

	return func(c *gin.Context) {
		key := prefix + c.FullPath() + ":" + config.KeyFunc(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := client.IncrWindow(ctx, key, config.Window)
		if err != nil {
			// fail closed
			logger.Log.Error("Rate limit check failed, rejecting request",
				logger.WithIP(c.ClientIP()),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.Upstream("rate limiter", err))
			c.Abort()
			return
		}

		if count > int64(config.Limit) {
			retryAfter := int(config.Window.Seconds())
			if ttl, err := client.TTL(ctx, key); err == nil && ttl > 0 {
				retryAfter = int(ttl.Seconds()) + 1
			}
			logger.Log.Warn("Rate limit exceeded",
				logger.WithIP(c.ClientIP()),
				zap.String("path", c.FullPath()),
				zap.Int64("count", count),
			)
			rejectRateLimited(c, config.Limit, retryAfter)
			return
		}

		c.Next()
	}
}
