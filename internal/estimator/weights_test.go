package estimator

import (
	"math"
	"testing"

	"gocausal/domain/causal"
)

func TestWeightEngine_InversePropensityFormula(t *testing.T) {
	engine := NewWeightEngine(10)
	treatment := []int{1, 0, 1, 0}
	scores := []float64{0.25, 0.25, 0.80, 0.80}

	weights, err := engine.ComputeWeights(treatment, scores)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := []float64{4, 1 / 0.75, 1.25, 5}
	for i, w := range want {
		if math.Abs(weights[i]-w) > 1e-12 {
			t.Fatalf("weight %d: want %v, got %v", i, w, weights[i])
		}
	}
}

func TestWeightEngine_ClippedScoresYieldFiniteWeights(t *testing.T) {
	engine := NewWeightEngine(10)
	eps := 1e-6
	weights, err := engine.ComputeWeights([]int{1, 0}, []float64{eps, 1 - eps})
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	for i, w := range weights {
		if math.IsInf(w, 0) || math.IsNaN(w) {
			t.Fatalf("weight %d is not finite: %v", i, w)
		}
		if math.Abs(w-1e6) > 1e-3 {
			t.Fatalf("weight %d: expected ~1e6, got %v", i, w)
		}
	}
}

func TestWeightEngine_RejectsScoresAtBounds(t *testing.T) {
	engine := NewWeightEngine(10)
	if _, err := engine.ComputeWeights([]int{1}, []float64{0}); err == nil {
		t.Fatal("expected rejection of score 0")
	}
	if _, err := engine.ComputeWeights([]int{0}, []float64{1}); err == nil {
		t.Fatal("expected rejection of score 1")
	}
}

func TestWeightEngine_SummaryFlagsExtremeWeights(t *testing.T) {
	engine := NewWeightEngine(2)
	weights := []float64{1, 1, 1, 13}

	summary, err := engine.Summary(weights)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Min != 1 || summary.Max != 13 {
		t.Fatalf("min/max wrong: %+v", summary)
	}
	if math.Abs(summary.Mean-4) > 1e-12 {
		t.Fatalf("expected mean 4, got %v", summary.Mean)
	}
	// Threshold is 2 * mean = 8; only the 13 exceeds it.
	if summary.ExtremeCount != 1 {
		t.Fatalf("expected 1 extreme weight, got %d", summary.ExtremeCount)
	}
	if math.Abs(summary.ExtremeThreshold-8) > 1e-12 {
		t.Fatalf("expected threshold 8, got %v", summary.ExtremeThreshold)
	}
}

func TestWeightEngine_TrimClampKeepsEveryUnit(t *testing.T) {
	engine := NewWeightEngine(10)
	weights := []float64{1, 2, 3, 4, 100}

	out, kept, err := engine.Trim(weights, 0.1, 0.9, causal.TrimClamp)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if len(out) != len(weights) || len(kept) != len(weights) {
		t.Fatalf("clamp must keep every unit: %d weights, %d kept", len(out), len(kept))
	}
	maxBefore, maxAfter := 0.0, 0.0
	for i := range weights {
		if kept[i] != i {
			t.Fatalf("clamp must keep index order, got %v", kept)
		}
		if weights[i] > maxBefore {
			maxBefore = weights[i]
		}
		if out[i] > maxAfter {
			maxAfter = out[i]
		}
	}
	if maxAfter >= maxBefore {
		t.Fatalf("clamp should cap the largest weight: before %v, after %v", maxBefore, maxAfter)
	}
}

func TestWeightEngine_TrimExcludeDropsOutliers(t *testing.T) {
	engine := NewWeightEngine(10)
	weights := []float64{1, 2, 3, 4, 100}

	out, kept, err := engine.Trim(weights, 0.1, 0.9, causal.TrimExclude)
	if err != nil {
		t.Fatalf("trim: %v", err)
	}
	if len(out) >= len(weights) {
		t.Fatalf("exclude should drop units, kept %d of %d", len(out), len(weights))
	}
	for k, i := range kept {
		if out[k] != weights[i] {
			t.Fatalf("kept weight %d misaligned: %v vs original %v", k, out[k], weights[i])
		}
	}
	for _, i := range kept {
		if i == 4 {
			t.Fatal("the outlier weight should have been excluded")
		}
	}
}

func TestWeightEngine_TrimRejectsBadQuantiles(t *testing.T) {
	engine := NewWeightEngine(10)
	if _, _, err := engine.Trim([]float64{1, 2}, 0.9, 0.1, causal.TrimClamp); err == nil {
		t.Fatal("expected rejection of inverted quantiles")
	}
	if _, _, err := engine.Trim([]float64{1, 2}, -0.1, 0.9, causal.TrimClamp); err == nil {
		t.Fatal("expected rejection of a negative quantile")
	}
}
