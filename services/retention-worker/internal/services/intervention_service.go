package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"go.uber.org/zap"
)

// Action is what handling one prediction event did to the customer's intervention.
type Action string

const (
	ActionOpened    Action = "opened"
	ActionRefreshed Action = "refreshed"
	ActionResolved  Action = "resolved"
	ActionSkipped   Action = "skipped"
)

// InterventionService turns prediction events into retention interventions.
type InterventionService interface {
	Handle(ctx context.Context, event views.PredictionEvent) (Action, error)
}

type InterventionServiceConfig struct {
	Logger *zap.Logger
	Repo   repositories.InterventionRepository
	// MinRisk is the lowest tier that opens an intervention. Defaults to High.
	MinRisk pkg.RiskLevel
	// ResolveOnLowRisk closes an open intervention once the customer scores Low.
	ResolveOnLowRisk bool
	// RetryMaxElapsed bounds retries of transient store errors.
	RetryMaxElapsed time.Duration
}

type InterventionServiceImpl struct {
	cfg InterventionServiceConfig
}

func NewInterventionService(cfg InterventionServiceConfig) InterventionService {
	if cfg.MinRisk == "" {
		cfg.MinRisk = pkg.RiskLevelHigh
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = 10 * time.Second
	}
	return &InterventionServiceImpl{cfg: cfg}
}

var riskRank = map[pkg.RiskLevel]int{
	pkg.RiskLevelLow:    1,
	pkg.RiskLevelMedium: 2,
	pkg.RiskLevelHigh:   3,
}

func (s *InterventionServiceImpl) Handle(ctx context.Context, event views.PredictionEvent) (Action, error) {
	rank, ok := riskRank[event.RiskLevel]
	if !ok {
		return ActionSkipped, fmt.Errorf("unknown risk level %q", event.RiskLevel)
	}

	var action Action
	var err error
	switch {
	case rank >= riskRank[s.cfg.MinRisk]:
		action, err = s.open(ctx, event)
	case event.RiskLevel == pkg.RiskLevelLow && s.cfg.ResolveOnLowRisk:
		action, err = s.resolve(ctx, event)
	default:
		action = ActionSkipped
	}
	if err != nil {
		return ActionSkipped, err
	}
	s.cfg.Logger.Info("intervention_"+string(action),
		zap.String("customer_id", event.CustomerID),
		zap.String("risk_level", string(event.RiskLevel)),
		zap.Float64("churn_probability", event.ChurnProbability),
		zap.String(pkg.TraceId, event.TraceID),
	)
	return action, nil
}

func (s *InterventionServiceImpl) open(ctx context.Context, event views.PredictionEvent) (Action, error) {
	var created bool
	err := s.retry(ctx, "open", func() error {
		var err error
		_, created, err = s.cfg.Repo.Open(ctx, models.Intervention{
			CustomerID:       event.CustomerID,
			RiskLevel:        event.RiskLevel,
			ChurnProbability: event.ChurnProbability,
			TraceID:          event.TraceID,
		})
		return err
	})
	if err != nil {
		return ActionSkipped, err
	}
	if created {
		return ActionOpened, nil
	}
	return ActionRefreshed, nil
}

func (s *InterventionServiceImpl) resolve(ctx context.Context, event views.PredictionEvent) (Action, error) {
	var resolved bool
	err := s.retry(ctx, "resolve", func() error {
		var err error
		resolved, err = s.cfg.Repo.Resolve(ctx, event.CustomerID)
		return err
	})
	if err != nil {
		return ActionSkipped, err
	}
	if resolved {
		return ActionResolved, nil
	}
	return ActionSkipped, nil
}

// retry re-runs op with exponential backoff. Constraint and data errors are not retried.
func (s *InterventionServiceImpl) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
		backoff.WithMaxElapsedTime(s.cfg.RetryMaxElapsed),
	)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if isPermanentStoreError(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		s.cfg.Logger.Warn("intervention_store_retry", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		return err
	}, backoff.WithContext(b, ctx))
}

// isPermanentStoreError reports Postgres data exceptions (class 22) and integrity
// violations (class 23).
func isPermanentStoreError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return false
	}
	class := pgErr.Code[:2]
	return class == "22" || class == "23"
}
