package configs

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration for retention-worker.
type Config struct {
	MetricsAddr          string        `mapstructure:"METRICS_ADDR" validate:"required"`
	KafkaBrokers         string        `mapstructure:"KAFKA_BROKERS" validate:"required"`
	PrimaryDbAddr        string        `mapstructure:"PRIMARY_DB_ADDR" validate:"required"`
	ReplicaDbAddr        string        `mapstructure:"REPLICA_DB_ADDR"`
	MaxDbCons            int32         `mapstructure:"MAX_DB_CONNECTIONS" validate:"min=1"`
	MinDbCons            int32         `mapstructure:"MIN_DB_CONNECTIONS" validate:"min=1,ltefield=MaxDbCons"`
	KafkaTopic           string        `mapstructure:"KAFKA_PREDICTION_TOPIC" validate:"required"`
	KafkaConsumerGroup   string        `mapstructure:"KAFKA_CONSUMER_GROUP" validate:"required"`
	KafkaPartition       int32         `mapstructure:"KAFKA_PARTITION" validate:"min=1"`
	KafkaDLQTopic        string        `mapstructure:"KAFKA_DLQ_TOPIC" validate:"required"`
	KafkaDLQRetention    time.Duration `mapstructure:"KAFKA_DLQ_RETENTION" validate:"required"`
	MaxConcurrentJobs    int           `mapstructure:"MAX_CONCURRENT_JOBS" validate:"min=1,max=256"`
	InterventionRisk     string        `mapstructure:"INTERVENTION_RISK_LEVEL" validate:"oneof=High Medium"` // lowest tier that opens an intervention
	ResolveOnLowRisk     bool          `mapstructure:"RESOLVE_ON_LOW_RISK"`
	StoreRetryMaxElapsed time.Duration `mapstructure:"STORE_RETRY_MAX_ELAPSED" validate:"required"`
}

func Load(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded_dotenv_file")
	}

	viper.SetEnvPrefix("app")
	viper.AutomaticEnv()

	viper.SetDefault("METRICS_ADDR", ":9102")
	viper.SetDefault("MAX_DB_CONNECTIONS", "10")
	viper.SetDefault("MIN_DB_CONNECTIONS", "2")
	viper.SetDefault("KAFKA_PREDICTION_TOPIC", "churn-predictions")
	viper.SetDefault("KAFKA_CONSUMER_GROUP", "retention-workers")
	viper.SetDefault("KAFKA_PARTITION", "4")
	viper.SetDefault("KAFKA_DLQ_TOPIC", "churn-predictions-dlq")
	viper.SetDefault("KAFKA_DLQ_RETENTION", "168h")
	viper.SetDefault("MAX_CONCURRENT_JOBS", "16")
	viper.SetDefault("INTERVENTION_RISK_LEVEL", "High")
	viper.SetDefault("RESOLVE_ON_LOW_RISK", "true")
	viper.SetDefault("STORE_RETRY_MAX_ELAPSED", "10s")

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
	viper.AddConfigPath("./services/retention-worker/configs")
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
