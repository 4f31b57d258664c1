package services

import (
	"context"
	"errors"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
	"github.com/nimeshabuddhika/churnshield/pkg/scoring"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/observability"
	"go.uber.org/zap"
)

type PredictionService interface {
	Predict(ctx context.Context, traceID, requestedBy string, record views.CustomerRecord) (views.PredictionResult, error)
}

type PredictionServiceConfig struct {
	Logger     *zap.Logger
	Scorer     scoring.Scorer // nil means no model is loaded
	ScorerName string         // metrics label: local or remote
	Recorder   PredictionRecorder
	Publisher  EventPublisher
	Now        func() time.Time
}

type PredictionServiceImpl struct {
	PredictionServiceConfig
}

func NewPredictionService(cfg PredictionServiceConfig) PredictionService {
	if cfg.Publisher == nil {
		cfg.Publisher = NoopPublisher{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ScorerName == "" {
		cfg.ScorerName = "local"
	}
	return &PredictionServiceImpl{cfg}
}

func (p *PredictionServiceImpl) Predict(ctx context.Context, traceID, requestedBy string, record views.CustomerRecord) (views.PredictionResult, error) {
	if p.Scorer == nil {
		observability.PredictionFailures.WithLabelValues("model_not_loaded").Inc()
		return views.PredictionResult{}, pkg.NewAppError(pkg.ErrModelUnavailableCode, "", pkg.ErrModelNotLoaded)
	}
	if utils.IsEmpty(record.CustomerID) {
		record.CustomerID = pkg.UnknownCustomer
	}

	start := time.Now()
	score, err := p.Scorer.Score(ctx, record)
	observability.ScoringLatency.WithLabelValues(p.ScorerName).Observe(time.Since(start).Seconds())
	if err != nil {
		return views.PredictionResult{}, p.scoringError(traceID, err)
	}

	risk := scoring.RiskLevel(score.Probability)
	result := views.PredictionResult{
		CustomerID:       record.CustomerID,
		ChurnPrediction:  score.Probability > scoring.ChurnThreshold,
		ChurnProbability: utils.Round(score.Probability, 4),
		RiskLevel:        risk,
		Explanations:     scoring.TopExplanations(score.Explanations, scoring.DefaultTopN),
		ModelVersion:     score.ModelVersion,
	}
	observability.PredictionsTotal.WithLabelValues(string(risk)).Inc()
	p.Logger.Info("prediction_scored",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.CustomerId, record.CustomerID),
		zap.Float64("probability", result.ChurnProbability),
		zap.String("risk_level", string(risk)))

	predictedAt := p.Now().UTC()
	predictionClass := 0
	if result.ChurnPrediction {
		predictionClass = 1
	}
	if err := p.Recorder.Record(traceID, models.PredictionLog{
		CustomerID:      record.CustomerID,
		PredictionProb:  score.Probability,
		PredictionClass: predictionClass,
		RiskLevel:       risk,
		PredictionDate:  predictedAt,
	}); err != nil {
		p.Logger.Warn("prediction_log_not_queued", zap.String(pkg.TraceId, traceID), zap.Error(err))
	}

	if err := p.Publisher.PublishPrediction(ctx, views.PredictionEvent{
		CustomerID:       record.CustomerID,
		ChurnProbability: result.ChurnProbability,
		ChurnPrediction:  result.ChurnPrediction,
		RiskLevel:        risk,
		RequestedBy:      requestedBy,
		TraceID:          traceID,
		PredictedAt:      predictedAt,
	}); err != nil {
		p.Logger.Warn("prediction_event_not_published", zap.String(pkg.TraceId, traceID), zap.Error(err))
	}
	return result, nil
}

func (p *PredictionServiceImpl) scoringError(traceID string, err error) error {
	switch {
	case errors.Is(err, pkg.ErrModelNotLoaded):
		observability.PredictionFailures.WithLabelValues("model_not_loaded").Inc()
		return pkg.NewAppError(pkg.ErrModelUnavailableCode, "", err)
	case errors.Is(err, scoring.ErrThrottled):
		observability.PredictionFailures.WithLabelValues("throttled").Inc()
		return pkg.NewAppError(pkg.ErrUnavailableCode, "model service is busy, retry shortly", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		observability.PredictionFailures.WithLabelValues("timeout").Inc()
		return pkg.NewAppError(pkg.ErrUnavailableCode, "prediction timed out", err)
	default:
		observability.PredictionFailures.WithLabelValues("scoring_error").Inc()
		p.Logger.Error("prediction_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
		return pkg.NewAppError(pkg.ErrPredictionCode, "Prediction failed: "+err.Error(), err)
	}
}
