package estimator

import (
	"math"

	"gocausal/domain/causal"
	"gocausal/internal/errors"

	"github.com/montanaflynn/stats"
)

// Matcher performs nearest-neighbor propensity-score matching without
// replacement: each control unit is paired to at most one treated unit.
type Matcher struct {
	// Ratio is the number of controls matched to each treated unit.
	Ratio int
	// Caliper, when positive, excludes controls whose absolute score
	// distance exceeds it. Zero disables the caliper.
	Caliper float64
}

// MatchResult holds the matched-pair structure plus the count of treated
// units that could not be matched (not an error, but always reported).
type MatchResult struct {
	Pairs            []causal.MatchedPair
	UnmatchedTreated int
}

// TreatedIndices returns the treated unit indices in the matched set
func (r *MatchResult) TreatedIndices() []int {
	out := make([]int, 0, len(r.Pairs))
	for _, p := range r.Pairs {
		out = append(out, p.Treated)
	}
	return out
}

// ControlIndices returns the matched control indices, repeats preserved in
// pairing order
func (r *MatchResult) ControlIndices() []int {
	var out []int
	for _, p := range r.Pairs {
		out = append(out, p.Controls...)
	}
	return out
}

// Match pairs each treated unit, in dataset order, with the Ratio closest
// remaining controls by absolute propensity-score distance. Ties break on
// the lowest control index. A treated unit that cannot receive its full
// ratio of controls is left unmatched.
func (m *Matcher) Match(treatment []int, scores []float64) (*MatchResult, error) {
	if len(treatment) != len(scores) {
		return nil, errors.InvalidInput("treatment and score lengths differ").
			WithDetail("treatment", len(treatment)).WithDetail("scores", len(scores))
	}
	ratio := m.Ratio
	if ratio < 1 {
		ratio = 1
	}

	available := make(map[int]bool)
	for i, d := range treatment {
		if d == 0 {
			available[i] = true
		}
	}

	result := &MatchResult{}
	for i, d := range treatment {
		if d != 1 {
			continue
		}
		controls := m.nearestControls(i, scores, available, ratio)
		if len(controls) < ratio {
			result.UnmatchedTreated++
			continue
		}
		for _, c := range controls {
			delete(available, c)
		}
		result.Pairs = append(result.Pairs, causal.MatchedPair{Treated: i, Controls: controls})
	}
	return result, nil
}

// nearestControls selects up to ratio controls closest to the treated score.
// It scans candidates in index order so equal distances resolve to the
// lowest index.
func (m *Matcher) nearestControls(treated int, scores []float64, available map[int]bool, ratio int) []int {
	type candidate struct {
		index int
		dist  float64
	}
	var best []candidate
	for c := 0; c < len(scores); c++ {
		if !available[c] {
			continue
		}
		dist := math.Abs(scores[treated] - scores[c])
		if m.Caliper > 0 && dist > m.Caliper {
			continue
		}
		// Insertion sort into the running top-ratio; strict inequality keeps
		// the earlier (lower) index on ties.
		pos := len(best)
		for pos > 0 && dist < best[pos-1].dist {
			pos--
		}
		if pos >= ratio {
			continue
		}
		best = append(best, candidate{})
		copy(best[pos+1:], best[pos:])
		best[pos] = candidate{index: c, dist: dist}
		if len(best) > ratio {
			best = best[:ratio]
		}
	}
	out := make([]int, len(best))
	for i, b := range best {
		out[i] = b.index
	}
	return out
}

// StandardizedMeanDifference computes (mean treated - mean control) divided
// by the pooled standard deviation, the balance diagnostic consumed by
// external plotting. Defined as 0 when the pooled SD is 0.
func StandardizedMeanDifference(treatedValues, controlValues []float64) float64 {
	if len(treatedValues) == 0 || len(controlValues) == 0 {
		return 0
	}
	meanT, _ := stats.Mean(treatedValues)
	meanC, _ := stats.Mean(controlValues)
	varT, _ := stats.SampleVariance(treatedValues)
	varC, _ := stats.SampleVariance(controlValues)
	pooled := math.Sqrt((varT + varC) / 2)
	if pooled == 0 || math.IsNaN(pooled) {
		return 0
	}
	return (meanT - meanC) / pooled
}
