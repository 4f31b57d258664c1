package utils

import (
	"math"
	"math/rand"
	"time"
)

// CalculateExponentialBackoffWithJitter computes a jittered exponential backoff delay.
// - attempt: retry attempt number (1-based)
// - base: delay of the first retry
// - max: upper bound of any delay
// Jitter is +/-12.5% of the exponential delay.
func CalculateExponentialBackoffWithJitter(attempt int, base time.Duration, max time.Duration) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}

	// Exponential backoff: base * 2^(attempt-1)
	delay := base * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay <= 0 || delay > max {
		delay = max
	}

	if spread := int64(delay / 4); spread > 0 {
		delay += time.Duration(rand.Int63n(spread)) - delay/8
	}

	if delay > max {
		delay = max
	}
	return delay
}
