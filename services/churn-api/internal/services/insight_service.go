package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/cache"
	"github.com/nimeshabuddhika/churnshield/pkg/dataset"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/nimeshabuddhika/churnshield/pkg/utils"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/internal/observability"
	"go.uber.org/zap"
)

const (
	DefaultLogLimit = 10
	MaxLogLimit     = 100
	statsCacheKey   = "dashboard"
)

// StatsCache is satisfied by cache.JSONCache.
type StatsCache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

type InsightService interface {
	Stats(ctx context.Context, traceID string) (views.Stats, error)
	RecentLogs(ctx context.Context, traceID string, limit int) ([]views.LogEntry, error)
	Features() views.FeatureCatalog
}

type InsightServiceConfig struct {
	Logger   *zap.Logger
	Logs     repositories.PredictionLogRepository
	DataPath string
	Cache    StatsCache // optional
	CacheTTL time.Duration
	Now      func() time.Time
}

type InsightServiceImpl struct {
	cfg InsightServiceConfig

	mu          sync.Mutex
	summary     dataset.Summary
	summaryMod  time.Time
	summaryFile string
}

func NewInsightService(cfg InsightServiceConfig) *InsightServiceImpl {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &InsightServiceImpl{cfg: cfg}
}

// Stats combines dataset aggregates with the risk mix of logged predictions.
// Results are cached for CacheTTL when a cache is configured.
func (s *InsightServiceImpl) Stats(ctx context.Context, traceID string) (views.Stats, error) {
	if s.cfg.Cache != nil {
		var cached views.Stats
		err := s.cfg.Cache.Get(ctx, statsCacheKey, &cached)
		switch {
		case err == nil:
			observability.StatsCacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		case errors.Is(err, cache.ErrMiss):
			observability.StatsCacheLookups.WithLabelValues("miss").Inc()
		default:
			observability.StatsCacheLookups.WithLabelValues("error").Inc()
			s.cfg.Logger.Warn("stats_cache_read_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
		}
	}

	summary, err := s.datasetSummary()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return views.Stats{}, pkg.NewAppError(pkg.ErrUnavailableCode, "Dataset not found for stats calculation", err)
		}
		return views.Stats{}, pkg.NewAppError(pkg.ErrServerCode, "Failed to calculate statistics", err)
	}
	counts, err := s.cfg.Logs.CountByRiskLevel(ctx)
	if err != nil {
		return views.Stats{}, pkg.HandleSQLError(traceID, s.cfg.Logger, err)
	}

	stats := views.Stats{
		TotalCustomers:       int(summary.TotalCustomers),
		ChurnRate:            summary.ChurnRate,
		MonthlyRevenueAtRisk: summary.MonthlyRevenueAtRisk,
		ActiveInterventions:  counts[pkg.RiskLevelHigh],
		GeneratedAt:          s.cfg.Now().UTC(),
	}
	stats.RiskDistribution, stats.PredictionsLogged = riskDistribution(counts)
	stats.DistributionFromLogs = stats.PredictionsLogged > 0

	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.Set(ctx, statsCacheKey, stats, s.cfg.CacheTTL); err != nil {
			s.cfg.Logger.Warn("stats_cache_write_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
		}
	}
	return stats, nil
}

var riskBuckets = []struct {
	level pkg.RiskLevel
	label string
	color string
	base  float64 // share shown before any prediction is logged
}{
	{pkg.RiskLevelLow, "Low Risk", "#10b981", 65},
	{pkg.RiskLevelMedium, "Medium Risk", "#fbbf24", 22},
	{pkg.RiskLevelHigh, "High Risk", "#f43f5e", 13},
}

// riskDistribution returns percentage buckets and the number of logs they cover.
func riskDistribution(counts map[pkg.RiskLevel]int64) ([]views.RiskBucket, int64) {
	var total int64
	for _, b := range riskBuckets {
		total += counts[b.level]
	}
	out := make([]views.RiskBucket, 0, len(riskBuckets))
	for _, b := range riskBuckets {
		value := b.base
		if total > 0 {
			value = utils.Round(float64(counts[b.level])/float64(total)*100, 1)
		}
		out = append(out, views.RiskBucket{Label: b.label, Value: value, Color: b.color})
	}
	return out, total
}

// datasetSummary reparses the CSV only when its modification time changes.
func (s *InsightServiceImpl) datasetSummary() (dataset.Summary, error) {
	info, err := os.Stat(s.cfg.DataPath)
	if err != nil {
		return dataset.Summary{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summaryFile == s.cfg.DataPath && s.summaryMod.Equal(info.ModTime()) {
		return s.summary, nil
	}
	rows, err := dataset.LoadFile(s.cfg.DataPath)
	if err != nil {
		return dataset.Summary{}, err
	}
	s.summary = dataset.Summarize(rows)
	s.summaryMod = info.ModTime()
	s.summaryFile = s.cfg.DataPath
	s.cfg.Logger.Info("dataset_summary_loaded", zap.String("path", s.cfg.DataPath), zap.Int64("customers", s.summary.TotalCustomers))
	return s.summary, nil
}

func (s *InsightServiceImpl) RecentLogs(ctx context.Context, traceID string, limit int) ([]views.LogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	logs, err := s.cfg.Logs.FindRecent(ctx, limit)
	if err != nil {
		return nil, pkg.HandleSQLError(traceID, s.cfg.Logger, err)
	}
	out := make([]views.LogEntry, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.ToLogEntry())
	}
	return out, nil
}

func (s *InsightServiceImpl) Features() views.FeatureCatalog {
	return FeatureCatalog()
}
