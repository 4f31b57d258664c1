package repositories

import (
	"context"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/database"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
)

type InterventionRepository interface {
	// Open creates the customer's open intervention, or refreshes the existing one.
	// created is false when an open intervention already existed.
	Open(ctx context.Context, in models.Intervention) (out models.Intervention, created bool, err error)
	// Resolve closes the customer's open intervention; it reports whether one existed.
	Resolve(ctx context.Context, customerID string) (bool, error)
	CountOpen(ctx context.Context) (int64, error)
}

type InterventionRepositoryImpl struct {
	db *database.DB
}

func NewInterventionRepository(db *database.DB) InterventionRepository {
	return &InterventionRepositoryImpl{db: db}
}

func (r InterventionRepositoryImpl) Open(ctx context.Context, in models.Intervention) (models.Intervention, bool, error) {
	var risk, status string
	var created bool
	err := r.db.QueryRowPrimary(ctx, `INSERT INTO retention_interventions (customer_id, status, risk_level, churn_probability, trace_id)
		VALUES ($1, 'open', $2, $3, $4)
		ON CONFLICT (customer_id) WHERE status = 'open'
		DO UPDATE SET risk_level = EXCLUDED.risk_level,
			churn_probability = EXCLUDED.churn_probability,
			trace_id = EXCLUDED.trace_id,
			updated_at = NOW()
		RETURNING id, status, risk_level, opened_at, updated_at, (xmax = 0) AS created`,
		in.CustomerID,
		string(in.RiskLevel),
		in.ChurnProbability,
		in.TraceID,
	).Scan(&in.ID, &status, &risk, &in.OpenedAt, &in.UpdatedAt, &created)
	if err != nil {
		return models.Intervention{}, false, err
	}
	in.Status = models.InterventionStatus(status)
	in.RiskLevel = pkg.RiskLevel(risk)
	return in, created, nil
}

func (r InterventionRepositoryImpl) Resolve(ctx context.Context, customerID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE retention_interventions
		SET status = 'resolved', resolved_at = NOW(), updated_at = NOW()
		WHERE customer_id = $1 AND status = 'open'`, customerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r InterventionRepositoryImpl) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM retention_interventions WHERE status = 'open'`).Scan(&n)
	return n, err
}
