package scoring

import (
	"context"
	"math"
	"testing"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// newCustomer is the default new-customer form: one month, DSL, month-to-month, e-check.
func newCustomer() views.CustomerRecord {
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

func fiberSenior() views.CustomerRecord {
	r := newCustomer()
	r.SeniorCitizen = intPtr(1)
	r.Partner = "No"
	r.PhoneService = "Yes"
	r.MultipleLines = "Yes"
	r.InternetService = "Fiber optic"
	r.OnlineBackup = "No"
	r.StreamingTV = "Yes"
	r.StreamingMovies = "Yes"
	r.Tenure = intPtr(2)
	r.MonthlyCharges = floatPtr(95)
	r.TotalCharges = floatPtr(190)
	return r
}

func loyalCustomer() views.CustomerRecord {
	r := newCustomer()
	r.Gender = "Male"
	r.Dependents = "Yes"
	r.PhoneService = "Yes"
	r.MultipleLines = "No"
	r.OnlineSecurity = "Yes"
	r.TechSupport = "Yes"
	r.DeviceProtection = "Yes"
	r.Contract = "Two year"
	r.PaperlessBilling = "No"
	r.PaymentMethod = "Credit card (automatic)"
	r.Tenure = intPtr(60)
	r.MonthlyCharges = floatPtr(65)
	r.TotalCharges = floatPtr(3900)
	return r
}

func defaultScorer(t *testing.T) *LocalScorer {
	t.Helper()
	m, err := DefaultModel()
	require.NoError(t, err)
	return NewLocalScorer(m)
}

func TestRiskLevel_Boundaries(t *testing.T) {
	cases := []struct {
		p    float64
		want pkg.RiskLevel
	}{
		{0, pkg.RiskLevelLow},
		{0.4, pkg.RiskLevelLow},
		{0.41, pkg.RiskLevelMedium},
		{0.7, pkg.RiskLevelMedium},
		{0.71, pkg.RiskLevelHigh},
		{1, pkg.RiskLevelHigh},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RiskLevel(tc.p), "p=%v", tc.p)
	}
}

func TestLocalScorer_KnownCustomers(t *testing.T) {
	s := defaultScorer(t)
	ctx := context.Background()

	got, err := s.Score(ctx, newCustomer())
	require.NoError(t, err)
	assert.InDelta(t, 0.6548, got.Probability, 1e-3)
	assert.Equal(t, pkg.RiskLevelMedium, RiskLevel(got.Probability))
	assert.Equal(t, "telco-logreg-2024.1", got.ModelVersion)

	got, err = s.Score(ctx, fiberSenior())
	require.NoError(t, err)
	assert.Greater(t, got.Probability, 0.9)
	assert.Equal(t, pkg.RiskLevelHigh, RiskLevel(got.Probability))

	got, err = s.Score(ctx, loyalCustomer())
	require.NoError(t, err)
	assert.Less(t, got.Probability, 0.05)
	assert.Equal(t, pkg.RiskLevelLow, RiskLevel(got.Probability))
}

func TestLocalScorer_AttributionsSumToLogit(t *testing.T) {
	s := defaultScorer(t)
	for _, rec := range []views.CustomerRecord{newCustomer(), fiberSenior(), loyalCustomer()} {
		got, err := s.Score(context.Background(), rec)
		require.NoError(t, err)
		sum := got.BaseValue
		for _, e := range got.Explanations {
			sum += e.Impact
		}
		assert.InDelta(t, got.Logit, sum, 1e-9)
		assert.InDelta(t, got.Probability, 1/(1+math.Exp(-got.Logit)), 1e-12)
	}
}

func TestLocalScorer_UnknownLevelHasNoActiveColumn(t *testing.T) {
	s := defaultScorer(t)
	rec := newCustomer()
	known, err := s.Score(context.Background(), rec)
	require.NoError(t, err)

	rec.Contract = "Three year"
	unknown, err := s.Score(context.Background(), rec)
	require.NoError(t, err)

	var contractWeight float64
	for _, f := range s.Model().Categorical {
		if f.Name != "Contract" {
			continue
		}
		for _, l := range f.Levels {
			if l.Value == "Month-to-month" {
				contractWeight = l.Weight
			}
		}
	}
	assert.InDelta(t, known.Logit-contractWeight, unknown.Logit, 1e-9)
}

func TestLocalScorer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := defaultScorer(t).Score(ctx, newCustomer())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTopExplanations(t *testing.T) {
	all := []views.Explanation{
		{Feature: "a", Impact: 0.1},
		{Feature: "b", Impact: -0.9},
		{Feature: "c", Impact: 0.5},
		{Feature: "d", Impact: -0.05},
		{Feature: "e", Impact: 0.3},
		{Feature: "f", Impact: 0.7},
	}
	top := TopExplanations(all, 5)
	require.Len(t, top, 5)
	assert.Equal(t, []string{"b", "f", "c", "e", "a"}, []string{top[0].Feature, top[1].Feature, top[2].Feature, top[3].Feature, top[4].Feature})
	assert.Equal(t, "a", all[0].Feature, "input must not be reordered")

	assert.Len(t, TopExplanations(all[:2], 5), 2)
}

func TestTopExplanations_UsesOneHotNames(t *testing.T) {
	got, err := defaultScorer(t).Score(context.Background(), newCustomer())
	require.NoError(t, err)
	top := TopExplanations(got.Explanations, DefaultTopN)
	require.Len(t, top, DefaultTopN)
	names := make([]string, 0, len(top))
	for _, e := range top {
		names = append(names, e.Feature)
	}
	assert.Contains(t, names, "tenure")
	assert.Contains(t, names, "Contract_Month-to-month")
}

func TestParseModel_Rejects(t *testing.T) {
	_, err := ParseModel([]byte(`{"version":"x","intercept":0}`))
	assert.Error(t, err)

	_, err = ParseModel([]byte(`{"numerical":[{"name":"tenure","std":-1}]}`))
	assert.Error(t, err)

	_, err = ParseModel([]byte(`{"categorical":[{"name":"Contract","levels":[{"value":"a","frequency":0.8},{"value":"b","frequency":0.8}]}]}`))
	assert.Error(t, err)

	_, err = ParseModel([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoadModel_RoundTripFile(t *testing.T) {
	m, err := DefaultModel()
	require.NoError(t, err)
	path := t.TempDir() + "/model.json"
	require.NoError(t, m.Save(path))

	loaded, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, m.Version, loaded.Version)
	assert.InDelta(t, m.BaseValue(), loaded.BaseValue(), 1e-12)

	_, err = LoadModel(t.TempDir() + "/missing.json")
	assert.Error(t, err)
}
