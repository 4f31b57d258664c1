package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"go.uber.org/zap"
)

// TraceID assigns a trace id (from X-Trace-Id or a new UUID) and echoes it in the response.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.Request.Header.Get(pkg.HeaderTraceId)
		if utils.IsEmpty(traceID) {
			traceID = uuid.NewString()
		}
		c.Set(pkg.TraceId, traceID)
		c.Writer.Header().Set(pkg.HeaderTraceId, traceID)
		if requestID := c.Request.Header.Get(pkg.HeaderRequestId); !utils.IsEmpty(requestID) {
			c.Set(pkg.RequestId, requestID)
		}
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String(pkg.TraceId, c.GetString(pkg.TraceId)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if username := c.GetString(pkg.Username); username != "" {
			fields = append(fields, zap.String(pkg.Username, username))
		}
		if status >= 500 {
			logger.Error("request_completed", fields...)
			return
		}
		logger.Info("request_completed", fields...)
	}
}
