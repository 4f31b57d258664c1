// Package scoring holds the churn model: a logistic regression over standardized numeric
// attributes and one-hot encoded categorical attributes, with exact per-column attributions.
package scoring

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

//go:embed model/churn_model.json
var defaultModelJSON []byte

type NumericalFeature struct {
	Name   string  `json:"name"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Weight float64 `json:"weight"`
}

type Level struct {
	Value     string  `json:"value"`
	Weight    float64 `json:"weight"`
	Frequency float64 `json:"frequency"` // share of training rows with this level
}

type CategoricalFeature struct {
	Name   string  `json:"name"`
	Levels []Level `json:"levels"`
}

// Model is the serialized churn model.
type Model struct {
	Version     string               `json:"version"`
	Intercept   float64              `json:"intercept"`
	Numerical   []NumericalFeature   `json:"numerical"`
	Categorical []CategoricalFeature `json:"categorical"`
}

// DefaultModel returns the model bundled with the binary.
func DefaultModel() (*Model, error) {
	return ParseModel(defaultModelJSON)
}

// LoadModel reads a model file; an empty path yields the bundled model.
func LoadModel(path string) (*Model, error) {
	if path == "" {
		return DefaultModel()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	return ParseModel(b)
}

func ParseModel(b []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the model as indented JSON.
func (m *Model) Save(path string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

func (m *Model) Validate() error {
	if len(m.Numerical) == 0 && len(m.Categorical) == 0 {
		return errors.New("model has no features")
	}
	if !finite(m.Intercept) {
		return errors.New("model intercept is not finite")
	}
	seen := make(map[string]struct{})
	for _, f := range m.Numerical {
		if f.Name == "" {
			return errors.New("numerical feature without name")
		}
		if f.Std < 0 || !finite(f.Mean) || !finite(f.Std) || !finite(f.Weight) {
			return fmt.Errorf("numerical feature %s has invalid parameters", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate feature %s", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	for _, f := range m.Categorical {
		if f.Name == "" || len(f.Levels) == 0 {
			return fmt.Errorf("categorical feature %q has no levels", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate feature %s", f.Name)
		}
		seen[f.Name] = struct{}{}
		var total float64
		for _, l := range f.Levels {
			if l.Frequency < 0 || !finite(l.Weight) {
				return fmt.Errorf("level %s of %s has invalid parameters", l.Value, f.Name)
			}
			total += l.Frequency
		}
		if total > 1.0001 {
			return fmt.Errorf("level frequencies of %s sum to %.4f", f.Name, total)
		}
	}
	return nil
}

// BaseValue is the expected log-odds over the training distribution.
func (m *Model) BaseValue() float64 {
	base := m.Intercept
	for _, f := range m.Categorical {
		for _, l := range f.Levels {
			base += l.Weight * l.Frequency
		}
	}
	return base
}

// ColumnName follows the one-hot "<feature>_<level>" naming convention.
func ColumnName(feature, level string) string {
	return feature + "_" + level
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
