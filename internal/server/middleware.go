package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aniverse/backend/internal/auth"
	"github.com/aniverse/backend/internal/logger"
)

const userIDKey = "user_id"

// RequestLogger tags every request with an id and logs its outcome.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.NewString()
		c.Set("request_id", reqID)
		start := time.Now()

		c.Next()

		log.Info("request",
			"id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

// RequireAuth rejects requests without a valid bearer token and puts
// the user id into the gin context.
func RequireAuth(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		userID, err := authSvc.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuth resolves the user id when a token is present but lets
// anonymous requests through.
func OptionalAuth(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if userID, err := authSvc.ParseToken(token); err == nil {
				c.Set(userIDKey, userID)
			}
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return c.Query("token")
}
