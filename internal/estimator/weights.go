package estimator

import (
	"sort"

	"gocausal/domain/causal"
	"gocausal/internal/errors"

	"github.com/montanaflynn/stats"
)

// WeightEngine computes inverse-probability-of-treatment weights from
// epsilon-clipped propensity scores and summarizes their distribution.
type WeightEngine struct {
	// ExtremeThreshold flags weights exceeding this multiple of the mean
	// weight. Reference default is 10.
	ExtremeThreshold float64
}

// NewWeightEngine creates a weight engine with the reference threshold
func NewWeightEngine(extremeThreshold float64) *WeightEngine {
	if extremeThreshold <= 0 {
		extremeThreshold = 10
	}
	return &WeightEngine{ExtremeThreshold: extremeThreshold}
}

// ComputeWeights applies w_i = D_i/e_i + (1-D_i)/(1-e_i). Scores must
// already be clipped into (0, 1); a score exactly at the clip epsilon
// yields a large but finite weight.
func (e *WeightEngine) ComputeWeights(treatment []int, scores []float64) ([]float64, error) {
	if len(treatment) != len(scores) {
		return nil, errors.InvalidInput("treatment and score lengths differ").
			WithDetail("treatment", len(treatment)).WithDetail("scores", len(scores))
	}
	weights := make([]float64, len(scores))
	for i, s := range scores {
		if s <= 0 || s >= 1 {
			return nil, errors.InvalidInput("propensity score outside (0, 1)").
				WithDetail("unit", i).WithDetail("score", s)
		}
		if treatment[i] == 1 {
			weights[i] = 1 / s
		} else {
			weights[i] = 1 / (1 - s)
		}
	}
	return weights, nil
}

// Summary reports the weight distribution and flags extremes
func (e *WeightEngine) Summary(weights []float64) (causal.WeightSummary, error) {
	if len(weights) == 0 {
		return causal.WeightSummary{}, errors.InvalidInput("no weights to summarize")
	}
	min, _ := stats.Min(weights)
	max, _ := stats.Max(weights)
	mean, _ := stats.Mean(weights)
	q25, _ := stats.Percentile(weights, 25)
	median, _ := stats.Median(weights)
	q75, _ := stats.Percentile(weights, 75)

	threshold := e.ExtremeThreshold * mean
	extreme := 0
	for _, w := range weights {
		if w > threshold {
			extreme++
		}
	}

	return causal.WeightSummary{
		Min:              min,
		Max:              max,
		Mean:             mean,
		Q25:              q25,
		Median:           median,
		Q75:              q75,
		ExtremeCount:     extreme,
		ExtremeThreshold: threshold,
	}, nil
}

// Trim applies the configured policy to weights outside the given quantile
// range. Clamp caps weights at the quantile bounds and keeps every unit;
// exclude drops the offending units. The returned kept slice holds the
// surviving indices into the input, aligned with the returned weights.
func (e *WeightEngine) Trim(weights []float64, lowerQuantile, upperQuantile float64, policy causal.TrimPolicy) ([]float64, []int, error) {
	if lowerQuantile < 0 || upperQuantile > 1 || lowerQuantile >= upperQuantile {
		return nil, nil, errors.InvalidInput("trim quantiles must satisfy 0 <= low < high <= 1").
			WithDetail("low", lowerQuantile).WithDetail("high", upperQuantile)
	}

	lo := quantile(weights, lowerQuantile)
	hi := quantile(weights, upperQuantile)

	switch policy {
	case causal.TrimClamp:
		out := make([]float64, len(weights))
		kept := make([]int, len(weights))
		for i, w := range weights {
			if w < lo {
				w = lo
			} else if w > hi {
				w = hi
			}
			out[i] = w
			kept[i] = i
		}
		return out, kept, nil
	case causal.TrimExclude:
		var out []float64
		var kept []int
		for i, w := range weights {
			if w < lo || w > hi {
				continue
			}
			out = append(out, w)
			kept = append(kept, i)
		}
		if len(out) == 0 {
			return nil, nil, errors.InvalidInput("trim excluded every unit").
				WithDetail("low", lo).WithDetail("high", hi)
		}
		return out, kept, nil
	default:
		return nil, nil, errors.InvalidInput("unknown trim policy").WithDetail("policy", string(policy))
	}
}

// quantile is the linear-interpolation sample quantile on sorted weights.
// The montanaflynn Percentile helper rejects 0 and rounds ranks, which is
// too coarse for trim bounds, so the bound computation stays explicit.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[lo]
	}
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
