package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnshield",
			Subsystem: "prediction",
			Name:      "total",
			Help:      "Scored customers by risk tier",
		},
		[]string{"risk_level"},
	)

	PredictionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnshield",
			Subsystem: "prediction",
			Name:      "failures_total",
			Help:      "Failed scoring attempts by reason",
		},
		[]string{"reason"},
	)

	ScoringLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "churnshield",
			Subsystem: "prediction",
			Name:      "scoring_duration_seconds",
			Help:      "Model scoring latency",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"scorer"},
	)

	LogWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnshield",
			Subsystem: "prediction_log",
			Name:      "writes_total",
			Help:      "Prediction log writes by outcome (ok, retried, failed, dropped)",
		},
		[]string{"outcome"},
	)

	LogQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "churnshield",
			Subsystem: "prediction_log",
			Name:      "queue_depth",
			Help:      "Prediction logs waiting to be written",
		},
	)

	StatsCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnshield",
			Subsystem: "stats",
			Name:      "cache_lookups_total",
			Help:      "Dashboard stats cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnshield",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnshield",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Prediction events handed to the broker by outcome",
		},
		[]string{"outcome"},
	)
)
