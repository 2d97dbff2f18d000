package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/regrant/regrant-auth/core"
	"github.com/regrant/regrant-auth/logging"
	"github.com/regrant/regrant-auth/service"
)

const userKey = "user"

// AuthMiddleware validates the bearer token and stores the user in the context
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		scheme, token, found := strings.Cut(auth, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			unauthorized(c, "Not authenticated")
			return
		}

		user, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrTokenExpired):
				unauthorized(c, "Token expired")
			case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrInactiveUser):
				unauthorized(c, "Could not validate credentials")
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": detailInternal})
			}
			return
		}

		c.Set(userKey, user)

		c.Next()
	}
}

// RequireSuperuser rejects authenticated users without the superuser flag.
// Must run after AuthMiddleware.
func RequireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			unauthorized(c, "Not authenticated")
			return
		}
		if !user.IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "The user doesn't have enough privileges"})
			return
		}

		c.Next()
	}
}

// RequestLogger writes one structured line per request
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond),
			"client_ip", c.ClientIP(),
		}
		if user, ok := currentUser(c); ok {
			args = append(args, "wallet_address", user.WalletAddress)
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			log.Error(ctx, "http request", args...)
		case status >= http.StatusBadRequest:
			log.Warn(ctx, "http request", args...)
		default:
			log.Info(ctx, "http request", args...)
		}
	}
}

func currentUser(c *gin.Context) (*core.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*core.User)
	return user, ok
}

func unauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": detail})
}
