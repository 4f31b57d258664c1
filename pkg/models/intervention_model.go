package models

import (
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
)

type InterventionStatus string

const (
	InterventionOpen     InterventionStatus = "open"
	InterventionResolved InterventionStatus = "resolved"
)

// Intervention maps to table `retention_interventions`
type Intervention struct {
	ID               int64
	CustomerID       string
	Status           InterventionStatus
	RiskLevel        pkg.RiskLevel
	ChurnProbability float64
	TraceID          string
	OpenedAt         time.Time
	UpdatedAt        time.Time
	ResolvedAt       *time.Time
}
