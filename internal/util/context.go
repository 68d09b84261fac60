package util

import (
	"github.com/gin-gonic/gin"
)

// GetUserIDFromContext extracts the user ID from the Gin context.
// Returns the user ID and true if found, or empty string and false if not authenticated.
// If the user is not authenticated, it automatically responds with 401 Unauthorized.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		RespondUnauthorized(c, "unauthorized")
		return "", false
	}
	return userID, true
}

// OptionalUserID returns the authenticated user id, or nil for anonymous requests
func OptionalUserID(c *gin.Context) *string {
	userID := c.GetString("user_id")
	if userID == "" {
		return nil
	}
	return &userID
}
