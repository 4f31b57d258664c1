package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/services"
	"go.uber.org/zap"
)

type ReportHandler struct {
	logger  *zap.Logger
	service services.ReportService
}

func NewReportHandler(logger *zap.Logger, svc services.ReportService) *ReportHandler {
	return &ReportHandler{logger: logger, service: svc}
}

func (h *ReportHandler) RegisterRoutes(r gin.IRoutes, mws ...gin.HandlerFunc) {
	r.POST("/report", chain(mws, h.GenerateReport)...)
}

func (h *ReportHandler) GenerateReport(c *gin.Context) {
	var req views.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, bindError(err))
		return
	}
	report, err := h.service.Generate(c.Request.Context(), c.GetString(pkg.TraceId), req.Data)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", report.Filename))
	c.Data(http.StatusOK, "application/pdf", report.Content)
}
