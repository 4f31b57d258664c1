package repositories

import (
	"context"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/database"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
)

type PredictionLogRepository interface {
	Create(ctx context.Context, log models.PredictionLog) (models.PredictionLog, error)
	// FindRecent returns the newest logs first.
	FindRecent(ctx context.Context, limit int) ([]models.PredictionLog, error)
	CountByRiskLevel(ctx context.Context) (map[pkg.RiskLevel]int64, error)
}

type PredictionLogRepositoryImpl struct {
	db *database.DB
}

func NewPredictionLogRepository(db *database.DB) PredictionLogRepository {
	return &PredictionLogRepositoryImpl{db: db}
}

func (p PredictionLogRepositoryImpl) Create(ctx context.Context, log models.PredictionLog) (models.PredictionLog, error) {
	err := p.db.QueryRowPrimary(ctx, `INSERT INTO prediction_logs (customer_id, prediction_prob, prediction_class, risk_level, prediction_date)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		RETURNING id, prediction_date`,
		log.CustomerID,
		log.PredictionProb,
		log.PredictionClass,
		string(log.RiskLevel),
		nullableTime(log.PredictionDate),
	).Scan(&log.ID, &log.PredictionDate)
	return log, err
}

func (p PredictionLogRepositoryImpl) FindRecent(ctx context.Context, limit int) ([]models.PredictionLog, error) {
	rows, err := p.db.Query(ctx, `SELECT id, customer_id, prediction_prob, prediction_class, risk_level, prediction_date
		FROM prediction_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]models.PredictionLog, 0, limit)
	for rows.Next() {
		var l models.PredictionLog
		var risk string
		if err = rows.Scan(&l.ID, &l.CustomerID, &l.PredictionProb, &l.PredictionClass, &risk, &l.PredictionDate); err != nil {
			return nil, err
		}
		l.RiskLevel = pkg.RiskLevel(risk)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (p PredictionLogRepositoryImpl) CountByRiskLevel(ctx context.Context) (map[pkg.RiskLevel]int64, error) {
	rows, err := p.db.Query(ctx, `SELECT risk_level, COUNT(*) FROM prediction_logs GROUP BY risk_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[pkg.RiskLevel]int64, 3)
	for rows.Next() {
		var risk string
		var n int64
		if err = rows.Scan(&risk, &n); err != nil {
			return nil, err
		}
		counts[pkg.RiskLevel(risk)] = n
	}
	return counts, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
