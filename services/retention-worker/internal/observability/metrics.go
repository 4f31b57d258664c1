package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retention_worker",
			Name:      "events_received_total",
			Help:      "Prediction events pulled from Kafka",
		},
		[]string{"topic"},
	)

	InterventionsChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retention_worker",
			Name:      "interventions_total",
			Help:      "Intervention state changes by action (opened, refreshed, resolved, skipped)",
		},
		[]string{"action"},
	)

	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retention_worker",
			Name:      "failed_total",
			Help:      "Events that could not be handled, by reason",
		},
		[]string{"reason"},
	)

	DLQPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retention_worker",
			Name:      "dlq_total",
			Help:      "Events sent to the DLQ by reason",
		},
		[]string{"reason"},
	)

	ProcessLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "retention_worker",
			Name:      "process_duration_seconds",
			Help:      "Per-event processing latency",
			Buckets:   prometheus.DefBuckets,
		},
	)

	InflightJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "retention_worker",
			Name:      "inflight_jobs",
			Help:      "Events currently being processed (semaphore depth)",
		},
	)
)
