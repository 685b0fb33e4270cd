package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	identityKey  = "identity"
	requestIDKey = "requestID"
)

// AuthMiddleware creates middleware that validates session tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		identity, err := authService.ValidateSessionToken(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, core.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityFrom(c *gin.Context) (core.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return core.Identity{}, false
	}
	identity, ok := v.(core.Identity)
	return identity, ok
}

// RequestLogger logs one line per request. Server errors log at warn.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		status := c.Writer.Status()
		var evt *zerolog.Event
		if status >= http.StatusInternalServerError {
			evt = log.Warn()
		} else {
			evt = log.Debug()
		}
		if last := c.Errors.Last(); last != nil {
			evt = evt.Err(last.Err)
		}
		evt.Str("request_id", requestID).
			Dur("latency", time.Since(start)).
			Str("remote_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("uri", c.Request.RequestURI).
			Int("status", status).
			Msg("request")
	}
}
