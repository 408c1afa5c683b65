package estimator

import (
	"math"
	"testing"
)

func TestMatcher_PairsEveryTreatedWhenControlsSuffice(t *testing.T) {
	treatment := []int{1, 0, 1, 0}
	scores := []float64{0.70, 0.72, 0.30, 0.28}

	m := &Matcher{Ratio: 1}
	res, err := m.Match(treatment, scores)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if res.UnmatchedTreated != 0 {
		t.Fatalf("expected no unmatched treated, got %d", res.UnmatchedTreated)
	}
	if len(res.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(res.Pairs))
	}
	if res.Pairs[0].Treated != 0 || res.Pairs[0].Controls[0] != 1 {
		t.Fatalf("unit 0 should pair with control 1, got %+v", res.Pairs[0])
	}
	if res.Pairs[1].Treated != 2 || res.Pairs[1].Controls[0] != 3 {
		t.Fatalf("unit 2 should pair with control 3, got %+v", res.Pairs[1])
	}
}

func TestMatcher_TiesBreakToLowestControlIndex(t *testing.T) {
	// Controls 1 and 2 sit equidistant from the treated score.
	treatment := []int{1, 0, 0}
	scores := []float64{0.50, 0.40, 0.60}

	res, err := (&Matcher{Ratio: 1}).Match(treatment, scores)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if got := res.Pairs[0].Controls[0]; got != 1 {
		t.Fatalf("tie should resolve to control 1, got %d", got)
	}
}

func TestMatcher_WithoutReplacementLeavesLaterTreatedUnmatched(t *testing.T) {
	// One control, two treated. Dataset order gives the control to unit 0.
	treatment := []int{1, 1, 0}
	scores := []float64{0.50, 0.50, 0.49}

	res, err := (&Matcher{Ratio: 1}).Match(treatment, scores)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Pairs) != 1 || res.Pairs[0].Treated != 0 {
		t.Fatalf("expected unit 0 to take the only control, got %+v", res.Pairs)
	}
	if res.UnmatchedTreated != 1 {
		t.Fatalf("expected 1 unmatched treated, got %d", res.UnmatchedTreated)
	}
}

func TestMatcher_CaliperExcludesDistantControls(t *testing.T) {
	treatment := []int{1, 0}
	scores := []float64{0.90, 0.10}

	res, err := (&Matcher{Ratio: 1, Caliper: 0.05}).Match(treatment, scores)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Pairs) != 0 || res.UnmatchedTreated != 1 {
		t.Fatalf("caliper should leave the treated unit unmatched, got %+v", res)
	}
}

func TestMatcher_PartialRatioCountsAsUnmatched(t *testing.T) {
	// Ratio 2 but only one control remains for the treated unit.
	treatment := []int{1, 0}
	scores := []float64{0.50, 0.51}

	res, err := (&Matcher{Ratio: 2}).Match(treatment, scores)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Pairs) != 0 || res.UnmatchedTreated != 1 {
		t.Fatalf("partial ratio should count as unmatched, got %+v", res)
	}
}

func TestMatcher_RatioTwoPicksTwoNearest(t *testing.T) {
	treatment := []int{1, 0, 0, 0}
	scores := []float64{0.50, 0.48, 0.55, 0.90}

	res, err := (&Matcher{Ratio: 2}).Match(treatment, scores)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(res.Pairs))
	}
	controls := res.Pairs[0].Controls
	if len(controls) != 2 {
		t.Fatalf("expected 2 controls, got %v", controls)
	}
	seen := map[int]bool{controls[0]: true, controls[1]: true}
	if !seen[1] || !seen[2] {
		t.Fatalf("expected controls 1 and 2, got %v", controls)
	}
}

func TestMatcher_LengthMismatchRejected(t *testing.T) {
	if _, err := (&Matcher{Ratio: 1}).Match([]int{1, 0}, []float64{0.5}); err == nil {
		t.Fatal("expected a length mismatch error")
	}
}

func TestStandardizedMeanDifference(t *testing.T) {
	// Means differ by 1 with unit variance in both groups.
	treated := []float64{1, 2, 3}
	control := []float64{0, 1, 2}
	if got := StandardizedMeanDifference(treated, control); math.Abs(got-1) > 1e-12 {
		t.Fatalf("expected SMD 1, got %v", got)
	}

	same := []float64{4, 4, 4}
	if got := StandardizedMeanDifference(same, same); got != 0 {
		t.Fatalf("zero pooled SD should give SMD 0, got %v", got)
	}

	if got := StandardizedMeanDifference(nil, control); got != 0 {
		t.Fatalf("empty group should give SMD 0, got %v", got)
	}
}
