package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"go.uber.org/zap"
)

// Limiter admits or rejects a single request.
type Limiter interface {
	Allow(ctx context.Context) bool
}

// RateLimit rejects requests with 429 when the limiter denies them.
func RateLimit(limiter Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.Context()) {
			c.Header("Retry-After", "1")
			AbortWithError(c, logger, pkg.NewAppError(pkg.ErrRateLimitedCode, "", nil))
			return
		}
		c.Next()
	}
}
