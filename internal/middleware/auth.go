package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

// SessionMiddleware resolves the player from a bearer token or a token query
// parameter. Requests without a token play as the guest user; a token that is
// present but invalid is rejected.
func SessionMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.Set("user_id", models.GuestUserID)
			c.Next()
			return
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("session_id", claims.SessionID)

		c.Next()
	}
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error)
}

// RateLimitMiddleware caps how often a player may start and finish rounds.
func RateLimitMiddleware(limiter RateLimiter, logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var action string
		var limit int
		window := time.Minute

		switch {
		case strings.HasSuffix(path, "/start"):
			action = "start"
			limit = services.DefaultRateLimitStart
		case strings.HasSuffix(path, "/finish"):
			action = "finish"
			limit = services.DefaultRateLimitFinish
		default:
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), userID, action, limit, window)
		if err != nil {
			logger.Warnw("rate limit check failed", "user_id", userID, "action", action, "error", err)
		}
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
