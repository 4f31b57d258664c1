package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type BaseHandler struct {
	logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	return &BaseHandler{logger: logger}
}

func (b *BaseHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", b.GetRoot)
	r.GET("/health", b.GetHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (b *BaseHandler) GetRoot(c *gin.Context) {
	c.JSON(http.StatusOK, views.MessageResponse{Message: "Churn Prediction API is running"})
}

func (b *BaseHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// chain returns mws followed by h without aliasing the caller's slice.
func chain(mws []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mws)+1)
	return append(append(out, mws...), h)
}
