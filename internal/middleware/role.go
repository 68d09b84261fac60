package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/errors"
	"github.com/prohub/nexus/backend/internal/logger"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/prohub/nexus/backend/internal/moderation"
	"github.com/prohub/nexus/backend/internal/util"
	"go.uber.org/zap"
)

// RequireRole ensures the authenticated user holds at least min.
// The role is read from the store on every request, never from the token.
// Must run after AuthMiddleware.
func RequireRole(roles moderation.RoleResolver, min models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			util.RespondWithAPIError(c, errors.Unauthorized("unauthorized"))
			c.Abort()
			return
		}

		role, err := roles.GetRole(c.Request.Context(), userID)
		if err != nil {
			logger.Log.Warn("Role check failed",
				logger.WithUserID(userID),
				zap.Error(err),
			)
			util.RespondWithAPIError(c, errors.Forbidden(string(min)+" access required"))
			c.Abort()
			return
		}

		if !role.AtLeast(min) {
			util.RespondWithAPIError(c, errors.Forbidden(string(min)+" access required"))
			c.Abort()
			return
		}

		c.Set("user_role", role)
		c.Next()
	}
}
