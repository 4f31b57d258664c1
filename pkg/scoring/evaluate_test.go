package scoring

import (
	"context"
	"fmt"
	"testing"

	"github.com/nimeshabuddhika/churnshield/pkg/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedScorer map[string]float64

func (f fixedScorer) Score(_ context.Context, r views.CustomerRecord) (Score, error) {
	return Score{Probability: f[r.CustomerID]}, nil
}

func labelled(id string, churned bool) Sample {
	return Sample{Record: views.CustomerRecord{CustomerID: id}, Churned: churned}
}

func TestStratifiedSplit_KeepsClassBalance(t *testing.T) {
	var samples []Sample
	for i := 0; i < 100; i++ {
		samples = append(samples, labelled(fmt.Sprint(i), i < 20))
	}
	train, test := StratifiedSplit(samples, 0.2, 42)
	require.Len(t, test, 20)
	require.Len(t, train, 80)

	var testPos int
	for _, s := range test {
		if s.Churned {
			testPos++
		}
	}
	assert.Equal(t, 4, testPos)

	again, _ := StratifiedSplit(samples, 0.2, 42)
	assert.Equal(t, train, again)
}

func TestEvaluate(t *testing.T) {
	scorer := fixedScorer{"a": 0.9, "b": 0.8, "c": 0.3, "d": 0.6, "e": 0.1}
	samples := []Sample{
		labelled("a", true),
		labelled("b", true),
		labelled("c", true),
		labelled("d", false),
		labelled("e", false),
	}
	m, err := Evaluate(context.Background(), scorer, samples)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Samples)
	assert.InDelta(t, 0.6, m.Accuracy, 1e-9)    // a, b, e correct
	assert.InDelta(t, 2.0/3, m.Precision, 1e-9) // a, b of a, b, d
	assert.InDelta(t, 2.0/3, m.Recall, 1e-9)
	// positive/negative pairs ranked correctly: (a,d) (a,e) (b,d) (b,e) (c,e) of 6
	assert.InDelta(t, 5.0/6, m.ROCAUC, 1e-9)

	_, err = Evaluate(context.Background(), scorer, nil)
	assert.Error(t, err)
}

func TestROCAUC_Ties(t *testing.T) {
	samples := []Sample{labelled("a", true), labelled("b", false)}
	assert.InDelta(t, 0.5, rocAUC(samples, []float64{0.5, 0.5}), 1e-9)
	assert.Zero(t, rocAUC([]Sample{labelled("a", true)}, []float64{0.4}))
}
