package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prohub/nexus/backend/internal/auth"
	"github.com/prohub/nexus/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

type stubRoles map[string]models.UserRole

func (s stubRoles) GetRole(ctx context.Context, userID string) (models.UserRole, error) {
	role, ok := s[userID]
	if !ok {
		return "", errors.New("user not found")
	}
	return role, nil
}

func issueToken(t *testing.T, svc *auth.Service, id string) string {
	t.Helper()
	token, _, err := svc.GenerateToken(&models.User{ID: id, Username: "user-" + id})
	require.NoError(t, err)
	return token
}

func newAuthRouter(validator auth.TokenValidator, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(validator)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id"), "username": c.GetString("username")})
	})
	router.GET("/private", handlers...)
	return router
}

func TestAuthMiddleware(t *testing.T) {
	svc := auth.NewService([]byte(testSecret))
	router := newAuthRouter(svc)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing token", "", "", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", "", http.StatusUnauthorized},
		{"valid header", "Bearer " + issueToken(t, svc, "u1"), "", http.StatusOK},
		{"valid query", "", "?token=" + issueToken(t, svc, "u1"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/private"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
				assert.Contains(t, w.Body.String(), `"username":"user-u1"`)
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	svc := auth.NewService([]byte(testSecret))
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/public", OptionalAuthMiddleware(svc), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/public", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	req := httptest.NewRequest("GET", "/public", nil)
	req.Header.Set("Authorization", "Bearer broken")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	req = httptest.NewRequest("GET", "/public", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, svc, "u9"))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "u9", w.Body.String())
}

func TestRequireRole(t *testing.T) {
	svc := auth.NewService([]byte(testSecret))
	roles := stubRoles{
		"mod":    models.RoleModerator,
		"admin":  models.RoleAdmin,
		"member": models.RoleMember,
	}
	router := newAuthRouter(svc, RequireRole(roles, models.RoleModerator))

	tests := []struct {
		userID string
		status int
	}{
		{"mod", http.StatusOK},
		{"admin", http.StatusOK},
		{"member", http.StatusForbidden},
		{"ghost", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/private", nil)
			req.Header.Set("Authorization", "Bearer "+issueToken(t, svc, tt.userID))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware(), GinLoggerMiddleware())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Len(t, w.Body.String(), 36)
	assert.Equal(t, w.Body.String(), w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "fixed")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "fixed", w.Body.String())
}
