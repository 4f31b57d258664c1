package views

import (
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
)

type Explanation struct {
	Feature string  `json:"feature"`
	Impact  float64 `json:"impact"`
}

// PredictionResult is returned by POST /predict and echoed back to POST /report.
type PredictionResult struct {
	CustomerID       string        `json:"customer_id"`
	ChurnPrediction  bool          `json:"churn_prediction"`
	ChurnProbability float64       `json:"churn_probability"`
	RiskLevel        pkg.RiskLevel `json:"risk_level"`
	Explanations     []Explanation `json:"explanations"`
	ModelVersion     string        `json:"model_version,omitempty"`
}

// ReportRequest wraps a prediction result. Clients usually send the result merged with
// the customer attributes it was computed from; unknown keys are kept for the report.
type ReportRequest struct {
	Data map[string]any `json:"data" binding:"required"`
}

// PredictionEvent is published for downstream retention workflows.
type PredictionEvent struct {
	CustomerID       string        `json:"customerId" validate:"required,max=50"`
	ChurnProbability float64       `json:"churnProbability" validate:"min=0,max=1"`
	ChurnPrediction  bool          `json:"churnPrediction"`
	RiskLevel        pkg.RiskLevel `json:"riskLevel" validate:"required,oneof=Low Medium High"`
	RequestedBy      string        `json:"requestedBy,omitempty"`
	TraceID          string        `json:"traceId"`
	PredictedAt      time.Time     `json:"predictedAt"`
}
