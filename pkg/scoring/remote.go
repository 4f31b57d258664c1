package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrThrottled is returned when the local throttle cannot grant a slot within MaxThrottleWait.
var ErrThrottled = errors.New("remote model throttled")

// RemoteScoreResponse is the inference service's response body.
type RemoteScoreResponse struct {
	Probability  float64             `json:"probability"`
	BaseValue    float64             `json:"base_value"`
	Explanations []views.Explanation `json:"explanations"`
	ModelVersion string              `json:"model_version"`
}

type RemoteScorerConfig struct {
	Addr            string // e.g. http://model-service:8000
	RatePerSec      int    // 0 disables throttling
	Burst           int
	MaxThrottleWait time.Duration
	MaxElapsedTime  time.Duration // overall retry budget
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// RemoteScorer delegates scoring to an external inference service.
type RemoteScorer struct {
	url             string
	client          *http.Client
	limiter         *rate.Limiter
	maxThrottleWait time.Duration
	maxElapsed      time.Duration
	logger          *zap.Logger
}

func NewRemoteScorer(cfg RemoteScorerConfig) *RemoteScorer {
	client := cfg.HTTPClient
	if client == nil {
		client = utils.NewHTTPClient(utils.WithRequestTimeout(2 * time.Second))
	}
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RatePerSec
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	if cfg.MaxThrottleWait <= 0 {
		cfg.MaxThrottleWait = 500 * time.Millisecond
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteScorer{
		url:             strings.TrimRight(cfg.Addr, "/") + "/predict",
		client:          client,
		limiter:         limiter,
		maxThrottleWait: cfg.MaxThrottleWait,
		maxElapsed:      cfg.MaxElapsedTime,
		logger:          logger,
	}
}

func (r *RemoteScorer) Score(ctx context.Context, record views.CustomerRecord) (Score, error) {
	if err := r.throttle(ctx); err != nil {
		return Score{}, err
	}
	body, err := json.Marshal(record)
	if err != nil {
		return Score{}, fmt.Errorf("encode record: %w", err)
	}

	var out RemoteScoreResponse
	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.client.Do(req)
		if err != nil {
			r.logger.Warn("remote_model_request_failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			_, _ = io.Copy(io.Discard, resp.Body)
			r.logger.Warn("remote_model_server_error", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			return fmt.Errorf("remote model status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("remote model status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode remote score: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = r.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return Score{}, err
	}
	if out.Probability < 0 || out.Probability > 1 || math.IsNaN(out.Probability) {
		return Score{}, fmt.Errorf("remote model returned probability %v", out.Probability)
	}
	return Score{
		Probability:  out.Probability,
		Logit:        logit(out.Probability),
		BaseValue:    out.BaseValue,
		Explanations: out.Explanations,
		ModelVersion: out.ModelVersion,
	}, nil
}

func (r *RemoteScorer) throttle(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, r.maxThrottleWait)
	defer cancel()
	if err := r.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrThrottled
	}
	return nil
}

func logit(p float64) float64 {
	switch {
	case p <= 0:
		return math.Inf(-1)
	case p >= 1:
		return math.Inf(1)
	}
	return math.Log(p / (1 - p))
}
