package scoring

import (
	"context"
	"errors"
	"math/rand"
	"sort"
)

// Metrics summarizes a model on a labelled holdout set at the churn threshold.
type Metrics struct {
	Samples   int     `json:"samples"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	ROCAUC    float64 `json:"roc_auc"`
}

// StratifiedSplit shuffles each class with seed and moves testFraction of it to the test set.
func StratifiedSplit(samples []Sample, testFraction float64, seed int64) (train, test []Sample) {
	var pos, neg []Sample
	for _, s := range samples {
		if s.Churned {
			pos = append(pos, s)
		} else {
			neg = append(neg, s)
		}
	}
	rng := rand.New(rand.NewSource(seed))
	for _, group := range [][]Sample{neg, pos} {
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		cut := int(float64(len(group)) * testFraction)
		test = append(test, group[:cut]...)
		train = append(train, group[cut:]...)
	}
	return train, test
}

// Evaluate scores every sample and reports classification metrics.
func Evaluate(ctx context.Context, scorer Scorer, samples []Sample) (Metrics, error) {
	if len(samples) == 0 {
		return Metrics{}, errors.New("no evaluation samples")
	}
	probs := make([]float64, len(samples))
	var tp, fp, tn, fn float64
	for i, s := range samples {
		score, err := scorer.Score(ctx, s.Record)
		if err != nil {
			return Metrics{}, err
		}
		probs[i] = score.Probability
		predicted := score.Probability > ChurnThreshold
		switch {
		case predicted && s.Churned:
			tp++
		case predicted && !s.Churned:
			fp++
		case !predicted && s.Churned:
			fn++
		default:
			tn++
		}
	}
	m := Metrics{Samples: len(samples), Accuracy: (tp + tn) / float64(len(samples))}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.ROCAUC = rocAUC(samples, probs)
	return m, nil
}

// rocAUC uses the rank-sum formulation with averaged ranks for ties.
// It returns 0 when only one class is present.
func rocAUC(samples []Sample, probs []float64) float64 {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, len(probs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && probs[idx[j+1]] == probs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var pos, neg, rankSum float64
	for i, s := range samples {
		if s.Churned {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}
