package configs

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for churn-api.
type Config struct {
	Port               string        `mapstructure:"PORT" validate:"required"`
	PrimaryDbAddr      string        `mapstructure:"PRIMARY_DB_ADDR"` // empty runs the in-memory demo store
	ReplicaDbAddr      string        `mapstructure:"REPLICA_DB_ADDR"`
	MaxDbCons          int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons          int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1,ltefield=MaxDbCons"`
	RedisAddr          string        `mapstructure:"REDIS_ADDR"`
	JwtSecret          string        `mapstructure:"JWT_SECRET" validate:"required,min=16"`
	JwtTTL             time.Duration `mapstructure:"JWT_TTL" validate:"required"`
	AuthRequired       bool          `mapstructure:"AUTH_REQUIRED"`
	ModelPath          string        `mapstructure:"MODEL_PATH"`         // empty uses the bundled model
	ModelServiceAddr   string        `mapstructure:"MODEL_SERVICE_ADDR"` // remote scorer; overrides MODEL_PATH
	ModelRateLimit     int           `mapstructure:"MODEL_RATE_LIMIT_PER_SEC" validate:"min=0"`
	ModelRequestBurst  int           `mapstructure:"MODEL_REQUEST_BURST" validate:"min=1"`
	ModelMaxThrottle   time.Duration `mapstructure:"MODEL_MAX_THROTTLE_WAIT" validate:"required"` // fail fast if a scorer slot takes longer
	DataPath           string        `mapstructure:"DATA_PATH"`
	StatsCacheTTL      time.Duration `mapstructure:"STATS_CACHE_TTL" validate:"required"`
	PredictRateLimit   int           `mapstructure:"PREDICT_RATE_LIMIT" validate:"min=0"`
	PredictBurst       int           `mapstructure:"PREDICT_BURST" validate:"min=1"`
	LogWorkers         int           `mapstructure:"LOG_WORKERS" validate:"min=1,max=64"`
	LogQueueSize       int           `mapstructure:"LOG_QUEUE_SIZE" validate:"min=1"`
	LogMaxRetries      int           `mapstructure:"LOG_MAX_RETRIES" validate:"min=0,max=10"`
	LogRetryBase       time.Duration `mapstructure:"LOG_RETRY_BASE_BACKOFF" validate:"required"`
	LogRetryMax        time.Duration `mapstructure:"LOG_RETRY_MAX_BACKOFF" validate:"required,gtefield=LogRetryBase"`
	KafkaBrokers       string        `mapstructure:"KAFKA_BROKERS"` // empty disables prediction events
	KafkaTopic         string        `mapstructure:"KAFKA_PREDICTION_TOPIC" validate:"required_with=KafkaBrokers"`
	KafkaPartition     int32         `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	CorsAllowedOrigins string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	DemoUserEnabled    bool          `mapstructure:"DEMO_USER_ENABLED"`
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CorsAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) DemoMode() bool { return utils.IsEmpty(c.PrimaryDbAddr) }

func Load(logger *zap.Logger) (*Config, error) {
	// .env is optional and never overrides real environment variables
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded_dotenv_file")
	}

	viper.SetEnvPrefix("app")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8000")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("JWT_TTL", "24h")
	viper.SetDefault("AUTH_REQUIRED", "false")
	viper.SetDefault("MODEL_RATE_LIMIT_PER_SEC", "50")
	viper.SetDefault("MODEL_REQUEST_BURST", "10")
	viper.SetDefault("MODEL_MAX_THROTTLE_WAIT", "500ms")
	viper.SetDefault("DATA_PATH", "data/WA_Fn-UseC_-Telco-Customer-Churn.csv")
	viper.SetDefault("STATS_CACHE_TTL", "60s")
	viper.SetDefault("PREDICT_RATE_LIMIT", "20")
	viper.SetDefault("PREDICT_BURST", "40")
	viper.SetDefault("LOG_WORKERS", "2")
	viper.SetDefault("LOG_QUEUE_SIZE", "1024")
	viper.SetDefault("LOG_MAX_RETRIES", "3")
	viper.SetDefault("LOG_RETRY_BASE_BACKOFF", "100ms")
	viper.SetDefault("LOG_RETRY_MAX_BACKOFF", "2s")
	viper.SetDefault("KAFKA_PREDICTION_TOPIC", "churn-predictions")
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173,http://localhost:3000")
	viper.SetDefault("DEMO_USER_ENABLED", "true")

	if gin.ReleaseMode == gin.Mode() {
		viper.SetConfigName("config.prod")
	} else if gin.TestMode == gin.Mode() {
		logger.Warn("running_in_test_mode")
		viper.SetConfigName("config.test")
	} else {
		logger.Warn("running_in_development_mode")
		viper.SetConfigName("config.dev")
	}
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./services/churn-api/configs")
	viper.AddConfigPath("./configs")
	_ = viper.ReadInConfig() // optional

	var cfg Config
	if err := utils.ParseStructEnv(&cfg); err != nil {
		return nil, err
	}
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, utils.FormatConfigErrors(logger, err, cfg)
	}
	return &cfg, nil
}
