package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg"
	middleware "github.com/nimeshabuddhika/churnshield/pkg/middlewares"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/services"
	"go.uber.org/zap"
)

type AuthHandler struct {
	logger  *zap.Logger
	service services.AuthService
}

func NewAuthHandler(logger *zap.Logger, svc services.AuthService) *AuthHandler {
	return &AuthHandler{logger: logger, service: svc}
}

// RegisterRoutes mounts the public routes on r and /logout behind requireAuth.
func (h *AuthHandler) RegisterRoutes(r gin.IRoutes, requireAuth gin.HandlerFunc) {
	r.POST("/login", h.Login)
	r.POST("/init-demo-user", h.InitDemoUser)
	r.POST("/logout", requireAuth, h.Logout)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req views.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, bindError(err))
		return
	}
	resp, err := h.service.Login(c.Request.Context(), c.GetString(pkg.TraceId), req)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		abortWithError(c, h.logger, pkg.NewAppError(pkg.ErrUnauthorizedCode, "", nil))
		return
	}
	if err := h.service.Logout(c.Request.Context(), c.GetString(pkg.TraceId), claims); err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, views.MessageResponse{Message: "Logged out"})
}

func (h *AuthHandler) InitDemoUser(c *gin.Context) {
	resp, err := h.service.InitDemoUser(c.Request.Context(), c.GetString(pkg.TraceId))
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
