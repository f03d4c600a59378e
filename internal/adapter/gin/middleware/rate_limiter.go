package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authn-service/internal/adapter/gin/handler"
	"authn-service/internal/adapter/ratelimit"
	apperrors "authn-service/pkg/errors"
	"authn-service/pkg/logger"
)

// RateLimiter returns a Gin middleware that admits each request against the
// limiter, keyed by method, route and client IP. Rejected requests never
// reach the handler, so they cost no hashing.
func RateLimiter(limiter ratelimit.Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := fmt.Sprintf("%s:%s:%s", c.Request.Method, route, c.ClientIP())

		d := limiter.Admit(c.Request.Context(), key)
		if !d.Allowed {
			logger.WithContext(c.Request.Context(), log).Warn("rate limit exceeded",
				zap.String("route", route),
				zap.Duration("retry_after", d.RetryAfter),
			)
			handler.WriteRateLimited(c, apperrors.NewRateLimitedError(d.RetryAfter))
			return
		}

		c.Next()
	}
}
