package causal

import (
	"fmt"

	"gocausal/domain/core"
)

// Method selects the estimation strategy for an estimate call.
type Method string

const (
	MethodMatching Method = "matching"
	MethodIPW      Method = "ipw"
	MethodDR       Method = "dr"
)

// ParseMethod validates a method string
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodMatching, MethodIPW, MethodDR:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown estimation method %q (want matching, ipw or dr)", s)
}

// TrimPolicy controls what happens to units whose weight falls outside the trim quantiles
type TrimPolicy string

const (
	TrimNone    TrimPolicy = "none"
	TrimClamp   TrimPolicy = "clamp"
	TrimExclude TrimPolicy = "exclude"
)

// Schema maps named columns to their causal roles. The caller supplies it;
// roles are never inferred from the data.
type Schema struct {
	Covariates []string `json:"covariates"`
	Treatment  string   `json:"treatment"`
	Outcome    string   `json:"outcome"`
}

// Validate checks the schema names are present and distinct
func (s Schema) Validate() error {
	if len(s.Covariates) == 0 {
		return fmt.Errorf("schema requires at least one covariate column")
	}
	if s.Treatment == "" {
		return fmt.Errorf("schema requires a treatment column")
	}
	if s.Outcome == "" {
		return fmt.Errorf("schema requires an outcome column")
	}
	seen := map[string]bool{s.Treatment: true}
	if seen[s.Outcome] {
		return fmt.Errorf("outcome column %q duplicates the treatment column", s.Outcome)
	}
	seen[s.Outcome] = true
	for _, c := range s.Covariates {
		if seen[c] {
			return fmt.Errorf("covariate column %q duplicates another role", c)
		}
		seen[c] = true
	}
	return nil
}

// Unit is one row of observational data. Immutable once loaded.
type Unit struct {
	Index      int       `json:"index"`
	Covariates []float64 `json:"covariates"`
	Treatment  int       `json:"treatment"`
	Outcome    float64   `json:"outcome"`
}

// Dataset is an ordered collection of units sharing the same covariate
// dimensionality. It is the single source of truth for an estimation run
// and is read-only to every downstream component.
type Dataset struct {
	Names []string `json:"covariate_names"`
	Units []Unit   `json:"units"`
}

// Len returns the number of units
func (d *Dataset) Len() int { return len(d.Units) }

// NumCovariates returns the covariate dimensionality
func (d *Dataset) NumCovariates() int { return len(d.Names) }

// TreatedCount returns the number of units with treatment = 1
func (d *Dataset) TreatedCount() int {
	n := 0
	for _, u := range d.Units {
		if u.Treatment == 1 {
			n++
		}
	}
	return n
}

// ControlCount returns the number of units with treatment = 0
func (d *Dataset) ControlCount() int { return d.Len() - d.TreatedCount() }

// Covariates returns the covariate rows, aligned with unit order
func (d *Dataset) Covariates() [][]float64 {
	rows := make([][]float64, len(d.Units))
	for i, u := range d.Units {
		rows[i] = u.Covariates
	}
	return rows
}

// Treatments returns the treatment indicators, aligned with unit order
func (d *Dataset) Treatments() []int {
	t := make([]int, len(d.Units))
	for i, u := range d.Units {
		t[i] = u.Treatment
	}
	return t
}

// Outcomes returns the outcome values, aligned with unit order
func (d *Dataset) Outcomes() []float64 {
	y := make([]float64, len(d.Units))
	for i, u := range d.Units {
		y[i] = u.Outcome
	}
	return y
}

// Validate enforces the dataset invariants: non-empty, consistent covariate
// dimensionality, binary treatment coding, and at least one unit in each arm.
func (d *Dataset) Validate() error {
	if len(d.Units) == 0 {
		return fmt.Errorf("dataset is empty")
	}
	dim := len(d.Names)
	treated, control := 0, 0
	for i, u := range d.Units {
		if len(u.Covariates) != dim {
			return fmt.Errorf("unit %d has %d covariates, want %d", i, len(u.Covariates), dim)
		}
		switch u.Treatment {
		case 1:
			treated++
		case 0:
			control++
		default:
			return fmt.Errorf("unit %d has non-binary treatment %d", i, u.Treatment)
		}
	}
	if treated == 0 || control == 0 {
		return fmt.Errorf("dataset needs both arms: %d treated, %d control", treated, control)
	}
	return nil
}

// MatchedPair relates one treated unit to the control units it was matched
// with. Indices refer to positions in the originating Dataset.
type MatchedPair struct {
	Treated  int   `json:"treated"`
	Controls []int `json:"controls"`
}

// PropensityDiagnostics reports how the fitted propensity scores behaved
// against the positivity epsilon.
type PropensityDiagnostics struct {
	Epsilon        float64   `json:"epsilon"`
	ClippedLow     int       `json:"clipped_low"`
	ClippedHigh    int       `json:"clipped_high"`
	ClippedIndices []int     `json:"clipped_indices,omitempty"`
	Coefficients   []float64 `json:"coefficients,omitempty"`
	// OverlapZ and OverlapP describe the mean propensity-score gap between
	// arms: a large gap signals the groups barely overlap.
	OverlapZ float64 `json:"overlap_z"`
	OverlapP float64 `json:"overlap_p"`
}

// WeightSummary describes the IPW weight distribution
type WeightSummary struct {
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	Mean             float64 `json:"mean"`
	Q25              float64 `json:"q25"`
	Median           float64 `json:"median"`
	Q75              float64 `json:"q75"`
	ExtremeCount     int     `json:"extreme_count"`
	ExtremeThreshold float64 `json:"extreme_threshold"`
}

// BalanceRow is the standardized mean difference for one covariate, before
// and (for matching) after adjustment.
type BalanceRow struct {
	Covariate string  `json:"covariate"`
	SMDBefore float64 `json:"smd_before"`
	SMDAfter  float64 `json:"smd_after"`
}

// Diagnostics is the payload an external plotting collaborator consumes.
// The core never renders it.
type Diagnostics struct {
	Propensity       PropensityDiagnostics `json:"propensity"`
	Weights          *WeightSummary        `json:"weights,omitempty"`
	Balance          []BalanceRow          `json:"balance,omitempty"`
	Pairs            []MatchedPair         `json:"pairs,omitempty"`
	UnmatchedTreated int                   `json:"unmatched_treated"`
	ExcludedUnits    int                   `json:"excluded_units"`
}

// ATEResult is the final output of an estimate call. Created once per call
// and never mutated afterwards.
type ATEResult struct {
	ID          core.RunID     `json:"id"`
	Method      Method         `json:"method"`
	Estimate    float64        `json:"estimate"`
	SampleSize  int            `json:"sample_size"`
	Diagnostics Diagnostics    `json:"diagnostics"`
	Replicates  []float64      `json:"replicates,omitempty"`
	CreatedAt   core.Timestamp `json:"created_at"`
}

// EstimateConfig carries the per-call options of spec section 6
type EstimateConfig struct {
	Method                 Method     `json:"method"`
	MatchRatio             int        `json:"match_ratio"`
	Caliper                float64    `json:"caliper"` // 0 disables
	TrimPolicy             TrimPolicy `json:"trim_policy"`
	TrimLower              float64    `json:"trim_lower"`
	TrimUpper              float64    `json:"trim_upper"`
	PositivityEpsilon      float64    `json:"positivity_epsilon"`
	MaxClippedFraction     float64    `json:"max_clipped_fraction"`
	EscalatePositivity     bool       `json:"escalate_positivity"`
	ExtremeWeightThreshold float64    `json:"extreme_weight_threshold"`
	BootstrapReplicates    int        `json:"bootstrap_replicates"`
	BootstrapWorkers       int        `json:"bootstrap_workers"`
	Seed                   int64      `json:"seed"`
}

// DefaultEstimateConfig returns the reference defaults
func DefaultEstimateConfig() EstimateConfig {
	return EstimateConfig{
		Method:                 MethodDR,
		MatchRatio:             1,
		TrimPolicy:             TrimNone,
		TrimLower:              0.01,
		TrimUpper:              0.99,
		PositivityEpsilon:      1e-6,
		MaxClippedFraction:     0.02,
		ExtremeWeightThreshold: 10.0,
		Seed:                   42,
	}
}

// Validate rejects configurations the estimator cannot honor
func (c EstimateConfig) Validate() error {
	if _, err := ParseMethod(string(c.Method)); err != nil {
		return err
	}
	if c.MatchRatio < 1 {
		return fmt.Errorf("match ratio must be >= 1, got %d", c.MatchRatio)
	}
	if c.Caliper < 0 {
		return fmt.Errorf("caliper must be >= 0, got %g", c.Caliper)
	}
	if c.PositivityEpsilon <= 0 || c.PositivityEpsilon >= 0.5 {
		return fmt.Errorf("positivity epsilon must lie in (0, 0.5), got %g", c.PositivityEpsilon)
	}
	if c.MaxClippedFraction < 0 || c.MaxClippedFraction > 1 {
		return fmt.Errorf("max clipped fraction must lie in [0, 1], got %g", c.MaxClippedFraction)
	}
	if c.ExtremeWeightThreshold <= 0 {
		return fmt.Errorf("extreme weight threshold must be > 0, got %g", c.ExtremeWeightThreshold)
	}
	switch c.TrimPolicy {
	case TrimNone, "":
	case TrimClamp, TrimExclude:
		if c.TrimLower < 0 || c.TrimUpper > 1 || c.TrimLower >= c.TrimUpper {
			return fmt.Errorf("trim quantiles must satisfy 0 <= low < high <= 1, got (%g, %g)", c.TrimLower, c.TrimUpper)
		}
	default:
		return fmt.Errorf("unknown trim policy %q", c.TrimPolicy)
	}
	if c.BootstrapReplicates < 0 {
		return fmt.Errorf("bootstrap replicates must be >= 0, got %d", c.BootstrapReplicates)
	}
	return nil
}
