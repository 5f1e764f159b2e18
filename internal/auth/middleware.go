package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nutrichat/internal/logging"
	"nutrichat/internal/models"
)

const (
	userIDContextKey    = "auth_user_id"
	authTokenContextKey = "auth_token"
)

// Middleware validates bearer tokens or the auth cookie, stores the user in
// the gin context and a user-scoped logger in the request context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authToken := s.extractToken(c)
		if authToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		ctx := c.Request.Context()
		userID, err := s.ValidateToken(ctx, authToken)
		if err != nil {
			logging.FromContext(ctx).Debug("token rejected", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(userIDContextKey, userID)
		c.Set(authTokenContextKey, authToken)
		logger := slog.Default().With("user_id", userID)
		c.Request = c.Request.WithContext(logging.WithLogger(ctx, logger))
		c.Next()
	}
}

// UserIDFromContext retrieves the authenticated user id from the gin context.
func UserIDFromContext(c *gin.Context) (int64, bool) {
	val, ok := c.Get(userIDContextKey)
	if !ok {
		return 0, false
	}
	userID, ok := val.(int64)
	return userID, ok
}

// AuthTokenFromContext retrieves the bearer token captured by the middleware.
func AuthTokenFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(authTokenContextKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}

// IdentityFromContext is the authenticated principal of the request.
func IdentityFromContext(c *gin.Context) (models.Identity, bool) {
	userID, ok := UserIDFromContext(c)
	if !ok || userID <= 0 {
		return models.Identity{}, false
	}
	token, _ := AuthTokenFromContext(c)
	return models.Identity{UserID: userID, Token: token}, true
}

func (s *Service) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(s.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token
	}
	return ""
}
