package scoring

import (
	"context"
	"math"
	"sort"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
)

const (
	HighRiskThreshold   = 0.7
	MediumRiskThreshold = 0.4
	ChurnThreshold      = 0.5
	DefaultTopN         = 5
)

// Score is the raw output of a scorer. Explanations hold every model column in log-odds.
type Score struct {
	Probability  float64
	Logit        float64
	BaseValue    float64
	Explanations []views.Explanation
	ModelVersion string
}

// Scorer scores a single customer record.
type Scorer interface {
	Score(ctx context.Context, record views.CustomerRecord) (Score, error)
}

// LocalScorer evaluates a Model in-process.
type LocalScorer struct {
	model *Model
	base  float64
}

func NewLocalScorer(model *Model) *LocalScorer {
	return &LocalScorer{model: model, base: model.BaseValue()}
}

func (s *LocalScorer) Model() *Model { return s.model }

// Score computes the logit and exact linear attributions:
// numeric columns contribute w*z, one-hot columns w*(x-frequency).
func (s *LocalScorer) Score(ctx context.Context, record views.CustomerRecord) (Score, error) {
	if err := ctx.Err(); err != nil {
		return Score{}, err
	}
	if s == nil || s.model == nil {
		return Score{}, pkg.ErrModelNotLoaded
	}
	numerical := record.Numerical()
	categorical := record.Categorical()

	logit := s.model.Intercept
	explanations := make([]views.Explanation, 0, len(s.model.Numerical)+len(s.model.Categorical)*3)
	for _, f := range s.model.Numerical {
		z := 0.0
		if f.Std > 0 {
			z = (numerical[f.Name] - f.Mean) / f.Std
		}
		impact := f.Weight * z
		logit += impact
		explanations = append(explanations, views.Explanation{Feature: f.Name, Impact: impact})
	}
	for _, f := range s.model.Categorical {
		value := categorical[f.Name]
		for _, l := range f.Levels {
			x := 0.0
			if l.Value == value {
				x = 1
				logit += l.Weight
			}
			explanations = append(explanations, views.Explanation{
				Feature: ColumnName(f.Name, l.Value),
				Impact:  l.Weight * (x - l.Frequency),
			})
		}
	}
	return Score{
		Probability:  sigmoid(logit),
		Logit:        logit,
		BaseValue:    s.base,
		Explanations: explanations,
		ModelVersion: s.model.Version,
	}, nil
}

// RiskLevel buckets a churn probability; both thresholds are exclusive.
func RiskLevel(p float64) pkg.RiskLevel {
	switch {
	case p > HighRiskThreshold:
		return pkg.RiskLevelHigh
	case p > MediumRiskThreshold:
		return pkg.RiskLevelMedium
	default:
		return pkg.RiskLevelLow
	}
}

// TopExplanations returns the n explanations with the largest absolute impact.
func TopExplanations(all []views.Explanation, n int) []views.Explanation {
	out := make([]views.Explanation, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Impact) > math.Abs(out[j].Impact)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
