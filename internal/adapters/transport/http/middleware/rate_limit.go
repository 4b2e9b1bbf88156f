package middleware

import (
	"net"
	"net/http"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/ratelimit"
	"github.com/gin-gonic/gin"
)

// NewHTTPRateLimitPerIP ограничивает RPS для Gin-ручек по адресу клиента.
func NewHTTPRateLimitPerIP(visitors *ratelimit.Visitors) gin.HandlerFunc {
	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}

		if !visitors.Allow(host) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
