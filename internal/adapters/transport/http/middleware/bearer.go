package middleware

import (
	"context"
	"net/http"
	"strings"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/credential/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const subjectKey = "credential.subject"

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// RequireBearer пропускает запрос только с действующим Bearer-токеном и
// кладёт subject в контекст gin.
func RequireBearer(v TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		if raw == "" || !strings.HasPrefix(raw, "Bearer ") {
			log.Warn("bearer auth failed", zap.String("path", c.Request.URL.Path), zap.String("reason", "missing header"))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization"})
			return
		}

		subject, err := v.VerifyToken(c.Request.Context(), strings.TrimPrefix(raw, "Bearer "))
		if err != nil {
			msg := customErrors.ErrTokenInvalid.Error()
			if customErrors.IsTokenExpired(err) {
				msg = customErrors.ErrTokenExpired.Error()
			}
			log.Warn("bearer auth failed", zap.String("path", c.Request.URL.Path), zap.String("reason", msg))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(subjectKey, subject)
		c.Next()
	}
}

func Subject(c *gin.Context) (string, bool) {
	return c.GetString(subjectKey), c.GetString(subjectKey) != ""
}
