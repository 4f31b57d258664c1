package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"go.uber.org/zap"
)

// AbortWithError renders err as the standard error body and stops the chain.
func AbortWithError(c *gin.Context, logger *zap.Logger, err error) {
	resp := pkg.ToErrorResponse(logger, c.GetString(pkg.TraceId), err)
	c.AbortWithStatusJSON(resp.Status, resp)
}
