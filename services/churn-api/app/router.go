package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/churnshield/pkg/auth"
	middleware "github.com/nimeshabuddhika/churnshield/pkg/middlewares"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/handlers"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/services"
	"go.uber.org/zap"
)

// RouterDeps are the collaborators the HTTP layer needs.
type RouterDeps struct {
	Tokens         *auth.TokenIssuer
	Auth           services.AuthService
	Prediction     services.PredictionService
	Insight        services.InsightService
	Report         services.ReportService
	Settings       services.SettingsService
	PredictLimiter middleware.Limiter // nil disables /predict rate limiting
}

type RouterOptions struct {
	AuthRequired   bool
	AllowedOrigins []string
}

// NewRouter builds the gin engine with all routes and middleware.
func NewRouter(logger *zap.Logger, opts RouterOptions, deps RouterDeps) *gin.Engine {
	handlers.UseJSONFieldNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(opts.AllowedOrigins))
	r.Use(middleware.TraceID())
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.Metrics())

	// /settings and /logout always need a session; data routes only when AUTH_REQUIRED is set
	requireAuth := middleware.Authenticate(deps.Tokens, logger, true)
	dataAuth := middleware.Authenticate(deps.Tokens, logger, opts.AuthRequired)

	handlers.NewBaseHandler(logger).RegisterRoutes(r)
	handlers.NewAuthHandler(logger, deps.Auth).RegisterRoutes(r, requireAuth)
	handlers.NewSettingsHandler(logger, deps.Settings).RegisterRoutes(r, requireAuth)
	handlers.NewInsightHandler(logger, deps.Insight).RegisterRoutes(r, dataAuth)
	handlers.NewReportHandler(logger, deps.Report).RegisterRoutes(r, dataAuth)

	predictMws := []gin.HandlerFunc{dataAuth}
	if deps.PredictLimiter != nil {
		predictMws = append(predictMws, middleware.RateLimit(deps.PredictLimiter, logger))
	}
	handlers.NewPredictionHandler(logger, deps.Prediction).RegisterRoutes(r, predictMws...)
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Trace-Id"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		for _, o := range origins {
			if !utils.IsEmpty(o) {
				cfg.AllowOrigins = append(cfg.AllowOrigins, o)
			}
		}
	}
	return cors.New(cfg)
}
