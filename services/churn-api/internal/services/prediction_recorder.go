package services

import (
	"context"
	"sync"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/observability"
	"go.uber.org/zap"
)

const logWriteTimeout = 5 * time.Second

// PredictionRecorder persists prediction logs off the request path.
type PredictionRecorder interface {
	// Record enqueues without blocking; a full queue drops the entry with ErrLogQueueFull.
	Record(traceID string, log models.PredictionLog) error
	// Close stops intake and waits until queued entries are written or ctx expires.
	Close(ctx context.Context) error
}

type PredictionRecorderConfig struct {
	Logger      *zap.Logger
	Repo        repositories.PredictionLogRepository
	Workers     int
	QueueSize   int
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

type logJob struct {
	traceID string
	log     models.PredictionLog
}

type PredictionRecorderImpl struct {
	cfg    PredictionRecorderConfig
	queue  chan logJob
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	sleep  func(time.Duration)
}

// NewPredictionRecorder starts cfg.Workers writer goroutines.
func NewPredictionRecorder(cfg PredictionRecorderConfig) *PredictionRecorderImpl {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	r := &PredictionRecorderImpl{
		cfg:   cfg,
		queue: make(chan logJob, cfg.QueueSize),
		sleep: time.Sleep,
	}
	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}
	cfg.Logger.Info("prediction_recorder_started", zap.Int("workers", cfg.Workers), zap.Int("queue_size", cfg.QueueSize))
	return r
}

func (r *PredictionRecorderImpl) Record(traceID string, log models.PredictionLog) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return pkg.ErrLogRecorderClosed
	}
	select {
	case r.queue <- logJob{traceID: traceID, log: log}:
		observability.LogQueueDepth.Inc()
		return nil
	default:
		observability.LogWrites.WithLabelValues("dropped").Inc()
		r.cfg.Logger.Warn("prediction_log_dropped",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.CustomerId, log.CustomerID))
		return pkg.ErrLogQueueFull
	}
}

func (r *PredictionRecorderImpl) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.cfg.Logger.Info("prediction_recorder_drained")
		return nil
	case <-ctx.Done():
		r.cfg.Logger.Warn("prediction_recorder_drain_timeout", zap.Int("pending", len(r.queue)))
		return ctx.Err()
	}
}

func (r *PredictionRecorderImpl) worker() {
	defer r.wg.Done()
	for job := range r.queue {
		observability.LogQueueDepth.Dec()
		r.write(job)
	}
}

// write retries with jittered exponential backoff up to MaxRetries extra attempts.
func (r *PredictionRecorderImpl) write(job logJob) {
	for attempt := 0; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
		saved, err := r.cfg.Repo.Create(ctx, job.log)
		cancel()
		if err == nil {
			outcome := "ok"
			if attempt > 0 {
				outcome = "retried"
			}
			observability.LogWrites.WithLabelValues(outcome).Inc()
			r.cfg.Logger.Debug("prediction_logged",
				zap.String(pkg.TraceId, job.traceID),
				zap.Int64("log_id", saved.ID),
				zap.Int("attempts", attempt+1))
			return
		}
		if attempt >= r.cfg.MaxRetries {
			observability.LogWrites.WithLabelValues("failed").Inc()
			r.cfg.Logger.Error("prediction_log_failed",
				zap.String(pkg.TraceId, job.traceID),
				zap.String(pkg.CustomerId, job.log.CustomerID),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return
		}
		delay := utils.CalculateExponentialBackoffWithJitter(attempt+1, r.cfg.BaseBackoff, r.cfg.MaxBackoff)
		r.cfg.Logger.Warn("prediction_log_retry",
			zap.String(pkg.TraceId, job.traceID),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		r.sleep(delay)
	}
}
