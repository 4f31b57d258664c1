package scoring

import (
	"errors"
	"math"
	"sort"

	"github.com/nimeshabuddhika/churnshield/pkg/views"
)

// Sample is one labelled training row.
type Sample struct {
	Record  views.CustomerRecord
	Churned bool
}

type TrainOptions struct {
	Epochs         int
	LearningRate   float64
	L2             float64
	BalanceClasses bool // weight positives by neg/pos
	Version        string
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Epochs: 500, LearningRate: 0.5, L2: 0.001, BalanceClasses: true, Version: "telco-logreg-custom"}
}

// Train fits a logistic regression with batch gradient descent.
// Means, standard deviations and level frequencies are taken from the samples.
func Train(samples []Sample, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 {
		return nil, errors.New("no training samples")
	}
	if opts.Epochs <= 0 || opts.LearningRate <= 0 {
		return nil, errors.New("epochs and learning rate must be positive")
	}
	var positives int
	for _, s := range samples {
		if s.Churned {
			positives++
		}
	}
	if positives == 0 || positives == len(samples) {
		return nil, errors.New("training samples must contain both classes")
	}

	m := &Model{Version: opts.Version}
	n := float64(len(samples))

	// numeric stats
	numericNames := []string{"tenure", "MonthlyCharges", "TotalCharges"}
	for _, name := range numericNames {
		var sum, sq float64
		for _, s := range samples {
			sum += s.Record.Numerical()[name]
		}
		mean := sum / n
		for _, s := range samples {
			d := s.Record.Numerical()[name] - mean
			sq += d * d
		}
		m.Numerical = append(m.Numerical, NumericalFeature{Name: name, Mean: mean, Std: math.Sqrt(sq / n)})
	}

	// categorical levels, sorted for stable output
	counts := make(map[string]map[string]int)
	for _, s := range samples {
		for name, value := range s.Record.Categorical() {
			if counts[name] == nil {
				counts[name] = make(map[string]int)
			}
			counts[name][value]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := CategoricalFeature{Name: name}
		for value, c := range counts[name] {
			f.Levels = append(f.Levels, Level{Value: value, Frequency: float64(c) / n})
		}
		sort.Slice(f.Levels, func(i, j int) bool { return f.Levels[i].Value < f.Levels[j].Value })
		m.Categorical = append(m.Categorical, f)
	}

	// design matrix: numeric z-scores followed by one-hot columns
	width := len(m.Numerical)
	for _, f := range m.Categorical {
		width += len(f.Levels)
	}
	xs := make([][]float64, len(samples))
	ys := make([]float64, len(samples))
	ws := make([]float64, len(samples))
	posWeight := 1.0
	if opts.BalanceClasses {
		posWeight = float64(len(samples)-positives) / float64(positives)
	}
	var totalWeight float64
	for i, s := range samples {
		row := make([]float64, width)
		num := s.Record.Numerical()
		for j, f := range m.Numerical {
			if f.Std > 0 {
				row[j] = (num[f.Name] - f.Mean) / f.Std
			}
		}
		col := len(m.Numerical)
		cat := s.Record.Categorical()
		for _, f := range m.Categorical {
			for _, l := range f.Levels {
				if cat[f.Name] == l.Value {
					row[col] = 1
				}
				col++
			}
		}
		xs[i] = row
		ws[i] = 1
		if s.Churned {
			ys[i] = 1
			ws[i] = posWeight
		}
		totalWeight += ws[i]
	}

	weights := make([]float64, width)
	var bias float64
	grad := make([]float64, width)
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64
		for i, row := range xs {
			z := bias
			for j, v := range row {
				z += weights[j] * v
			}
			diff := ws[i] * (sigmoid(z) - ys[i])
			gradBias += diff
			for j, v := range row {
				if v != 0 {
					grad[j] += diff * v
				}
			}
		}
		bias -= opts.LearningRate * gradBias / totalWeight
		for j := range weights {
			weights[j] -= opts.LearningRate * (grad[j]/totalWeight + opts.L2*weights[j])
		}
	}

	m.Intercept = bias
	for j := range m.Numerical {
		m.Numerical[j].Weight = weights[j]
	}
	col := len(m.Numerical)
	for fi := range m.Categorical {
		for li := range m.Categorical[fi].Levels {
			m.Categorical[fi].Levels[li].Weight = weights[col]
			col++
		}
	}
	return m, m.Validate()
}
