package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg/models"
	"github.com/nimeshabuddhika/churnshield/pkg/repositories"
	"github.com/nimeshabuddhika/churnshield/pkg/scoring"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func sampleCustomer() views.CustomerRecord {
	return views.CustomerRecord{
		CustomerID:       "CUST-001",
		Gender:           "Female",
		SeniorCitizen:    intPtr(0),
		Partner:          "Yes",
		Dependents:       "No",
		Tenure:           intPtr(1),
		PhoneService:     "No",
		MultipleLines:    "No phone service",
		InternetService:  "DSL",
		OnlineSecurity:   "No",
		OnlineBackup:     "Yes",
		DeviceProtection: "No",
		TechSupport:      "No",
		StreamingTV:      "No",
		StreamingMovies:  "No",
		Contract:         "Month-to-month",
		PaperlessBilling: "Yes",
		PaymentMethod:    "Electronic check",
		MonthlyCharges:   floatPtr(29.85),
		TotalCharges:     floatPtr(29.85),
	}
}

type stubScorer struct {
	score scoring.Score
	err   error
}

func (s stubScorer) Score(context.Context, views.CustomerRecord) (scoring.Score, error) {
	return s.score, s.err
}

// flakyLogRepo fails the first `failures` writes.
type flakyLogRepo struct {
	*repositories.MemoryPredictionLogRepository
	failures int32
	calls    atomic.Int32
}

func (f *flakyLogRepo) Create(ctx context.Context, log models.PredictionLog) (models.PredictionLog, error) {
	if f.calls.Add(1) <= f.failures {
		return models.PredictionLog{}, errors.New("connection reset")
	}
	return f.MemoryPredictionLogRepository.Create(ctx, log)
}

// blockingLogRepo holds every write until release is closed.
type blockingLogRepo struct {
	*repositories.MemoryPredictionLogRepository
	release chan struct{}
}

func (b *blockingLogRepo) Create(ctx context.Context, log models.PredictionLog) (models.PredictionLog, error) {
	<-b.release
	return b.MemoryPredictionLogRepository.Create(ctx, log)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []views.PredictionEvent
}

func (r *recordingPublisher) PublishPrediction(_ context.Context, e views.PredictionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() {}

type noSleep struct{ delays []time.Duration }

func (n *noSleep) sleep(d time.Duration) { n.delays = append(n.delays, d) }
