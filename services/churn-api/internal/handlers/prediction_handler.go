package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/services"
	"go.uber.org/zap"
)

type PredictionHandler struct {
	logger  *zap.Logger
	service services.PredictionService
}

func NewPredictionHandler(logger *zap.Logger, svc services.PredictionService) *PredictionHandler {
	return &PredictionHandler{logger: logger, service: svc}
}

func (h *PredictionHandler) RegisterRoutes(r gin.IRoutes, mws ...gin.HandlerFunc) {
	r.POST("/predict", chain(mws, h.Predict)...)
}

func (h *PredictionHandler) Predict(c *gin.Context) {
	var req views.CustomerRecord
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, bindError(err))
		return
	}
	result, err := h.service.Predict(c.Request.Context(), c.GetString(pkg.TraceId), c.GetString(pkg.Username), req)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
