package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/auth"
	"github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/util"
	"go.uber.org/zap"
)

// bearerToken pulls the token from the Authorization header, falling back to
// the token query parameter used by websocket clients
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// AuthMiddleware rejects requests without a valid session token.
// On success "user_id" and "username" are set on the context.
func AuthMiddleware(validator auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			util.RespondWithAPIError(c, errors.Unauthorized("no token provided"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			logger.Log.Debug("Rejected session token",
				logger.WithIP(c.ClientIP()),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.Unauthorized("invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the user when a valid token is present and
// lets anonymous requests through. A bad token is treated as anonymous.
func OptionalAuthMiddleware(validator auth.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := validator.ValidateToken(token); err == nil {
				c.Set("user_id", claims.UserID)
				c.Set("username", claims.Username)
			}
		}
		c.Next()
	}
}
