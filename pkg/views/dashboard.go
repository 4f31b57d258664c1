package views

import (
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
)

type RiskBucket struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Stats backs the dashboard view.
type Stats struct {
	TotalCustomers       int          `json:"total_customers"`
	ChurnRate            float64      `json:"churn_rate"`
	RiskDistribution     []RiskBucket `json:"risk_distribution"`
	MonthlyRevenueAtRisk float64      `json:"monthly_revenue_at_risk"`
	ActiveInterventions  int64        `json:"active_interventions"`
	PredictionsLogged    int64        `json:"predictions_logged"`
	DistributionFromLogs bool         `json:"distribution_from_logs"`
	GeneratedAt          time.Time    `json:"generated_at"`
}

type LogEntry struct {
	ID              int64         `json:"id"`
	CustomerID      string        `json:"customer_id"`
	PredictionProb  float64       `json:"prediction_prob"`
	PredictionClass int           `json:"prediction_class"`
	RiskLevel       pkg.RiskLevel `json:"risk_level"`
	PredictionDate  time.Time     `json:"prediction_date"`
}

type FeatureDescriptor struct {
	Name       string `json:"name"`
	Desc       string `json:"desc"`
	Importance string `json:"importance"`
}

type FeatureCatalog struct {
	Categorical []FeatureDescriptor `json:"categorical"`
	Numerical   []FeatureDescriptor `json:"numerical"`
}
