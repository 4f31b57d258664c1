package pkg

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DistributedLimiter combines a local rate.Limiter with a Redis counter for global enforcement
// across replicas. A nil Redis client degrades to local-only limiting.
type DistributedLimiter struct {
	localLimiter *rate.Limiter
	redisClient  *redis.Client
	key          string        // e.g: "churnshield:predict_rate"
	window       time.Duration // counter window, e.g: 1s
	globalLimit  int64         // max requests per window across replicas
	logger       *zap.Logger
}

// NewDistributedLimiter creates a limiter; if ratePerSec=0, it's unlimited.
func NewDistributedLimiter(redisClient *redis.Client, key string, ratePerSec, burst int, window time.Duration, logger *zap.Logger) *DistributedLimiter {
	var local *rate.Limiter
	if ratePerSec > 0 {
		local = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	if window <= 0 {
		window = time.Second
	}
	return &DistributedLimiter{
		localLimiter: local,
		redisClient:  redisClient,
		key:          key,
		window:       window,
		globalLimit:  int64(float64(ratePerSec)*window.Seconds()) + int64(burst),
		logger:       logger,
	}
}

// Allow checks if a token is available; uses Redis for distributed increment.
func (d *DistributedLimiter) Allow(ctx context.Context) bool {
	if d.localLimiter == nil {
		return true // Unlimited
	}

	// Local check first (fast path)
	if !d.localLimiter.Allow() {
		return false
	}
	if d.redisClient == nil {
		return true
	}

	// Fixed window counter keyed by window start
	windowKey := d.key + ":" + time.Now().Truncate(d.window).Format("20060102T150405.000")
	pipe := d.redisClient.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, 2*d.window)
	if _, err := pipe.Exec(ctx); err != nil {
		d.logger.Error("redis_rate_limit_error_falling_back_to_local", zap.Error(err))
		return true
	}

	count := incr.Val()
	if count > d.globalLimit {
		d.logger.Warn("global_rate_limit_exceeded", zap.String("key", d.key), zap.Int64("count", count))
		return false
	}
	return true
}
