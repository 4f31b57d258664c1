package models

import (
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
)

// PredictionLog maps to table `prediction_logs`
type PredictionLog struct {
	ID              int64
	CustomerID      string
	PredictionProb  float64
	PredictionClass int
	RiskLevel       pkg.RiskLevel
	PredictionDate  time.Time
}

func (p PredictionLog) ToLogEntry() views.LogEntry {
	return views.LogEntry{
		ID:              p.ID,
		CustomerID:      p.CustomerID,
		PredictionProb:  p.PredictionProb,
		PredictionClass: p.PredictionClass,
		RiskLevel:       p.RiskLevel,
		PredictionDate:  p.PredictionDate,
	}
}
