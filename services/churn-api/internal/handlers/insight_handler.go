package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/services"
	"go.uber.org/zap"
)

// InsightHandler serves the dashboard read endpoints.
type InsightHandler struct {
	logger  *zap.Logger
	service services.InsightService
}

func NewInsightHandler(logger *zap.Logger, svc services.InsightService) *InsightHandler {
	return &InsightHandler{logger: logger, service: svc}
}

// RegisterRoutes mounts /stats and /logs behind mws; /features is always public.
func (h *InsightHandler) RegisterRoutes(r gin.IRoutes, mws ...gin.HandlerFunc) {
	r.GET("/stats", chain(mws, h.GetStats)...)
	r.GET("/logs", chain(mws, h.GetLogs)...)
	r.GET("/features", h.GetFeatures)
}

func (h *InsightHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.GetString(pkg.TraceId))
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *InsightHandler) GetLogs(c *gin.Context) {
	limit := services.DefaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abortWithError(c, h.logger, pkg.NewAppError(pkg.ErrInvalidInputCode, "limit must be a positive integer", err))
			return
		}
		limit = n
	}
	logs, err := h.service.RecentLogs(c.Request.Context(), c.GetString(pkg.TraceId), limit)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *InsightHandler) GetFeatures(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Features())
}
