package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/services"
	"go.uber.org/zap"
)

type SettingsHandler struct {
	logger  *zap.Logger
	service services.SettingsService
}

func NewSettingsHandler(logger *zap.Logger, svc services.SettingsService) *SettingsHandler {
	return &SettingsHandler{logger: logger, service: svc}
}

// RegisterRoutes mounts /settings; requireAuth must reject anonymous callers.
func (h *SettingsHandler) RegisterRoutes(r gin.IRoutes, requireAuth gin.HandlerFunc) {
	r.GET("/settings", requireAuth, h.GetSettings)
	r.PUT("/settings", requireAuth, h.UpdateSettings)
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.service.Get(c.Request.Context(), c.GetString(pkg.TraceId), c.GetString(pkg.Username))
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req views.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, bindError(err))
		return
	}
	settings, err := h.service.Update(c.Request.Context(), c.GetString(pkg.TraceId), c.GetString(pkg.Username), req)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
