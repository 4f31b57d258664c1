package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/auth"
	"github.com/nimeshabuddhika/churnshield/pkg/cache"
	"github.com/nimeshabuddhika/churnshield/pkg/database"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/nimeshabuddhika/churnshield/pkg/scoring"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/configs"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const recorderDrainTimeout = 10 * time.Second

// NewApp wires dependencies, builds the Gin engine, and returns an *http.Server and a cleanup func.
// It reads configuration from environment variables via configs.Load.
func NewApp(ctx context.Context, logger *zap.Logger) (*http.Server, func(), error) {
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*http.Server, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Storage: postgres when configured, otherwise the in-memory demo store
	var users repositories.UserRepository
	var logs repositories.PredictionLogRepository
	if cfg.DemoMode() {
		logger.Warn("no_database_configured_running_in_memory_demo_mode")
		memUsers := repositories.NewMemoryUserRepository()
		if err := services.EnsureDemoUser(ctx, memUsers); err != nil {
			return fail(err)
		}
		users, logs = memUsers, repositories.NewMemoryPredictionLogRepository()
	} else {
		db, disconnect, err := database.New(ctx, logger, database.Config{
			PrimaryDSN: cfg.PrimaryDbAddr,
			ReadDSNs:   []string{cfg.ReplicaDbAddr},
			MaxConns:   cfg.MaxDbCons,
			MinConns:   cfg.MinDbCons,
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, disconnect)
		if err := database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
			return fail(err)
		}
		users = repositories.NewUserRepository(db)
		logs = repositories.NewPredictionLogRepository(db)
	}

	// Redis backs the stats cache, token denylist and the global predict limit
	var redisClient *redis.Client
	var statsCache services.StatsCache
	var denylist auth.Denylist = auth.NewMemoryDenylist()
	if !utils.IsEmpty(cfg.RedisAddr) {
		client, closeRedis, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr})
		if err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		closers = append(closers, closeRedis)
		redisClient = client
		statsCache = cache.NewJSONCache(client, "churnshield:stats:")
		denylist = auth.NewRedisDenylist(client)
		logger.Info("redis_connected", zap.String("addr", cfg.RedisAddr))
	}
	tokens := auth.NewTokenIssuer(cfg.JwtSecret, cfg.JwtTTL, denylist)

	scorer, scorerName := newScorer(logger, cfg)

	recorder := services.NewPredictionRecorder(services.PredictionRecorderConfig{
		Logger:      logger,
		Repo:        logs,
		Workers:     cfg.LogWorkers,
		QueueSize:   cfg.LogQueueSize,
		MaxRetries:  cfg.LogMaxRetries,
		BaseBackoff: cfg.LogRetryBase,
		MaxBackoff:  cfg.LogRetryMax,
	})
	closers = append(closers, func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), recorderDrainTimeout)
		defer cancel()
		if err := recorder.Close(drainCtx); err != nil {
			logger.Error("prediction_recorder_close_failed", zap.Error(err))
		}
	})

	var publisher services.EventPublisher = services.NoopPublisher{}
	if !utils.IsEmpty(cfg.KafkaBrokers) {
		kp, err := services.NewKafkaPredictionPublisher(ctx, logger, cfg)
		if err != nil {
			return fail(err)
		}
		publisher = kp
	}
	closers = append(closers, publisher.Close)

	deps := RouterDeps{
		Tokens: tokens,
		Auth:   services.NewAuthService(logger, users, tokens, cfg.DemoUserEnabled),
		Prediction: services.NewPredictionService(services.PredictionServiceConfig{
			Logger:     logger,
			Scorer:     scorer,
			ScorerName: scorerName,
			Recorder:   recorder,
			Publisher:  publisher,
		}),
		Insight: services.NewInsightService(services.InsightServiceConfig{
			Logger:   logger,
			Logs:     logs,
			DataPath: cfg.DataPath,
			Cache:    statsCache,
			CacheTTL: cfg.StatsCacheTTL,
		}),
		Report:   services.NewReportService(logger),
		Settings: services.NewSettingsService(logger, users),
		PredictLimiter: pkg.NewDistributedLimiter(redisClient, "churnshield:predict_rate",
			cfg.PredictRateLimit, cfg.PredictBurst, time.Second, logger),
	}
	r := NewRouter(logger, RouterOptions{AuthRequired: cfg.AuthRequired, AllowedOrigins: cfg.AllowedOrigins()}, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv, cleanup, nil
}

// newScorer prefers the remote inference service, then a model file, then the bundled model.
// A model that fails to load leaves the scorer nil so /predict answers 503.
func newScorer(logger *zap.Logger, cfg *configs.Config) (scoring.Scorer, string) {
	if !utils.IsEmpty(cfg.ModelServiceAddr) {
		logger.Info("using_remote_model_service", zap.String("addr", cfg.ModelServiceAddr))
		return scoring.NewRemoteScorer(scoring.RemoteScorerConfig{
			Addr:            cfg.ModelServiceAddr,
			RatePerSec:      cfg.ModelRateLimit,
			Burst:           cfg.ModelRequestBurst,
			MaxThrottleWait: cfg.ModelMaxThrottle,
			HTTPClient: utils.NewHTTPClient(
				utils.WithRequestTimeout(2*time.Second),
				utils.WithResponseHeaderTimeout(1500*time.Millisecond),
				utils.WithMaxIdleConnsPerHost(cfg.ModelRequestBurst),
			),
			Logger: logger,
		}), "remote"
	}
	model, err := scoring.LoadModel(cfg.ModelPath)
	if err != nil {
		logger.Error("model_load_failed", zap.String("path", cfg.ModelPath), zap.Error(err))
		return nil, "local"
	}
	logger.Info("model_loaded", zap.String("version", model.Version), zap.Int("numerical", len(model.Numerical)), zap.Int("categorical", len(model.Categorical)))
	return scoring.NewLocalScorer(model), "local"
}
