package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// scrubHeaders копирует заголовки, заменяя всё похожее на токены и куки.
func scrubHeaders(h http.Header) http.Header {
	clone := h.Clone()
	for k := range clone {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "authorization") || strings.Contains(lk, "cookie") || strings.Contains(lk, "token") {
			clone[k] = []string{"[redacted]"}
		}
	}
	return clone
}

// RequestLogger пишет в zap входящий запрос и итог, тела запросов не логируются вовсе.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqHeaders, _ := json.Marshal(scrubHeaders(c.Request.Header))
		log.Debug("↘︎ incoming request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("origin", c.GetHeader("Origin")),
			zap.ByteString("hdr", reqHeaders),
		)

		ts := time.Now()
		c.Next()

		latency := time.Since(ts)
		respStatus := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDurationSeconds.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(respStatus)).
			Observe(latency.Seconds())

		if c.IsAborted() {
			log.Warn("↗︎ aborted",
				zap.Int("status", respStatus),
				zap.Duration("latency", latency),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
			)
			return
		}

		for _, e := range c.Errors {
			log.Error("handler error",
				zap.Int("status", respStatus),
				zap.Error(e),
				zap.String("path", c.Request.URL.Path),
			)
		}

		log.Info("↗︎ completed",
			zap.Int("status", respStatus),
			zap.Duration("latency", latency),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
	}
}
