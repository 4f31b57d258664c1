package pkg

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// NewLogger builds a zap logger for the given gin mode. Release mode logs JSON to stdout,
// every other mode uses the human-readable development encoder.
func NewLogger(ginMode string) (*zap.Logger, error) {
	var config zap.Config
	if gin.ReleaseMode == ginMode {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return config.Build(zap.AddStacktrace(zap.DPanicLevel))
}

// InitLogger initializes the global Logger based on the current gin mode.
func InitLogger() {
	logger, err := NewLogger(gin.Mode())
	if err != nil {
		panic(err)
	}
	Logger = logger
}
