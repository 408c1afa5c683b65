package estimator

import (
	"context"
	"math"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal"
	"gocausal/internal/errors"
	"gocausal/ports"

	"gonum.org/v1/gonum/stat/distuv"
)

// ATEEstimator orchestrates the three estimation modes. It composes the
// propensity model, outcome model, matcher and weight engine; it never
// mutates the dataset and produces exactly one ATEResult per call.
type ATEEstimator struct {
	probability ports.ProbabilityModel
	outcome     ports.OutcomeModel
	logger      *internal.Logger
}

// NewATEEstimator creates an estimator over the supplied models
func NewATEEstimator(probability ports.ProbabilityModel, outcome ports.OutcomeModel) *ATEEstimator {
	return &ATEEstimator{
		probability: probability,
		outcome:     outcome,
		logger:      internal.DefaultLogger,
	}
}

// Estimate runs one estimation per the config, plus bootstrap replicates
// when requested. Sub-component failures propagate unchanged; there is no
// silent fallback between methods.
func (e *ATEEstimator) Estimate(ctx context.Context, ds *causal.Dataset, cfg causal.EstimateConfig) (*causal.ATEResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if err := ds.Validate(); err != nil {
		if ds.Len() > 0 && (ds.TreatedCount() == 0 || ds.ControlCount() == 0) {
			return nil, errors.InsufficientData(err.Error()).
				WithDetail("treated", ds.TreatedCount()).
				WithDetail("control", ds.ControlCount())
		}
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}

	point, diag, err := e.estimateOnce(ds, cfg)
	if err != nil {
		return nil, err
	}

	result := &causal.ATEResult{
		ID:          core.RunID(core.NewID()),
		Method:      cfg.Method,
		Estimate:    point,
		SampleSize:  ds.Len(),
		Diagnostics: *diag,
		CreatedAt:   core.Now(),
	}

	if cfg.BootstrapReplicates > 0 {
		replicates, err := e.bootstrap(ctx, ds, cfg)
		if err != nil {
			return nil, err
		}
		result.Replicates = replicates
	}

	e.logger.Info("estimated ATE=%.6f method=%s n=%d unmatched=%d clipped=%d",
		point, cfg.Method, ds.Len(), diag.UnmatchedTreated,
		diag.Propensity.ClippedLow+diag.Propensity.ClippedHigh)
	return result, nil
}

// estimateOnce computes a single point estimate with diagnostics. The
// bootstrap path reuses it on resampled datasets.
func (e *ATEEstimator) estimateOnce(ds *causal.Dataset, cfg causal.EstimateConfig) (float64, *causal.Diagnostics, error) {
	scores, propDiag, err := e.propensityScores(ds, cfg)
	if err != nil {
		return 0, nil, err
	}

	clipped := propDiag.ClippedLow + propDiag.ClippedHigh
	fraction := float64(clipped) / float64(ds.Len())
	if fraction > cfg.MaxClippedFraction {
		if cfg.EscalatePositivity {
			return 0, nil, errors.PositivityViolation("clipped propensity fraction exceeds tolerance").
				WithDetail("clipped", clipped).
				WithDetail("fraction", fraction).
				WithDetail("max_fraction", cfg.MaxClippedFraction).
				WithDetail("indices", propDiag.ClippedIndices)
		}
		e.logger.Warn("positivity: %d of %d scores clipped at epsilon %g (%.2f%%)",
			clipped, ds.Len(), cfg.PositivityEpsilon, 100*fraction)
	}

	diag := &causal.Diagnostics{Propensity: *propDiag}
	var point float64
	switch cfg.Method {
	case causal.MethodMatching:
		point, err = e.estimateMatching(ds, scores, cfg, diag)
	case causal.MethodIPW:
		point, err = e.estimateIPW(ds, scores, cfg, diag)
	case causal.MethodDR:
		point, err = e.estimateDR(ds, scores, cfg, diag)
	default:
		err = errors.ConfigInvalid("unknown estimation method").WithDetail("method", string(cfg.Method))
	}
	if err != nil {
		return 0, nil, err
	}
	return point, diag, nil
}

// propensityScores fits the probability model and clips predictions into
// [epsilon, 1-epsilon], recording which units hit the boundary.
func (e *ATEEstimator) propensityScores(ds *causal.Dataset, cfg causal.EstimateConfig) ([]float64, *causal.PropensityDiagnostics, error) {
	covariates := ds.Covariates()
	treatment := ds.Treatments()

	fitted, err := e.probability.Fit(covariates, treatment)
	if err != nil {
		return nil, nil, err
	}
	scores, err := fitted.Predict(covariates)
	if err != nil {
		return nil, nil, err
	}

	diag := &causal.PropensityDiagnostics{
		Epsilon:      cfg.PositivityEpsilon,
		Coefficients: fitted.Coefficients(),
	}
	eps := cfg.PositivityEpsilon
	for i, s := range scores {
		if s <= eps {
			scores[i] = eps
			diag.ClippedLow++
			diag.ClippedIndices = append(diag.ClippedIndices, i)
		} else if s >= 1-eps {
			scores[i] = 1 - eps
			diag.ClippedHigh++
			diag.ClippedIndices = append(diag.ClippedIndices, i)
		}
	}

	diag.OverlapZ, diag.OverlapP = scoreOverlap(treatment, scores)
	return scores, diag, nil
}

// scoreOverlap compares mean propensity between arms. A large z means the
// arms occupy different score regions and matching will struggle.
func scoreOverlap(treatment []int, scores []float64) (float64, float64) {
	var treated, control []float64
	for i, d := range treatment {
		if d == 1 {
			treated = append(treated, scores[i])
		} else {
			control = append(control, scores[i])
		}
	}
	if len(treated) < 2 || len(control) < 2 {
		return 0, 1
	}
	meanT, varT := meanVariance(treated)
	meanC, varC := meanVariance(control)
	se := math.Sqrt(varT/float64(len(treated)) + varC/float64(len(control)))
	if se == 0 {
		return 0, 1
	}
	z := (meanT - meanC) / se
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * (1 - norm.CDF(math.Abs(z)))
	return z, p
}

func meanVariance(values []float64) (float64, float64) {
	n := float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	if n < 2 {
		return mean, 0
	}
	return mean, ss / (n - 1)
}

// estimateMatching computes the mean outcome difference within the matched
// set and fills the balance diagnostics.
func (e *ATEEstimator) estimateMatching(ds *causal.Dataset, scores []float64, cfg causal.EstimateConfig, diag *causal.Diagnostics) (float64, error) {
	matcher := &Matcher{Ratio: cfg.MatchRatio, Caliper: cfg.Caliper}
	res, err := matcher.Match(ds.Treatments(), scores)
	if err != nil {
		return 0, err
	}
	if len(res.Pairs) == 0 {
		return 0, errors.InsufficientData("no treated unit could be matched").
			WithDetail("unmatched_treated", res.UnmatchedTreated)
	}

	treatedIdx := res.TreatedIndices()
	controlIdx := res.ControlIndices()

	meanT := 0.0
	for _, i := range treatedIdx {
		meanT += ds.Units[i].Outcome
	}
	meanT /= float64(len(treatedIdx))

	meanC := 0.0
	for _, i := range controlIdx {
		meanC += ds.Units[i].Outcome
	}
	meanC /= float64(len(controlIdx))

	diag.Pairs = res.Pairs
	diag.UnmatchedTreated = res.UnmatchedTreated
	diag.Balance = balanceTable(ds, treatedIdx, controlIdx)
	return meanT - meanC, nil
}

// balanceTable computes per-covariate SMD on the full sample and on the
// matched subset. The matched set preserves original covariate values; it
// only subsets rows per the pairing structure.
func balanceTable(ds *causal.Dataset, matchedTreated, matchedControls []int) []causal.BalanceRow {
	rows := make([]causal.BalanceRow, ds.NumCovariates())
	for j := range ds.Names {
		var allT, allC, mT, mC []float64
		for _, u := range ds.Units {
			if u.Treatment == 1 {
				allT = append(allT, u.Covariates[j])
			} else {
				allC = append(allC, u.Covariates[j])
			}
		}
		for _, i := range matchedTreated {
			mT = append(mT, ds.Units[i].Covariates[j])
		}
		for _, i := range matchedControls {
			mC = append(mC, ds.Units[i].Covariates[j])
		}
		rows[j] = causal.BalanceRow{
			Covariate: ds.Names[j],
			SMDBefore: StandardizedMeanDifference(allT, allC),
			SMDAfter:  StandardizedMeanDifference(mT, mC),
		}
	}
	return rows
}

// estimateIPW computes the weighted group-mean difference of spec form
// sum(wDY)/sum(wD) - sum(w(1-D)Y)/sum(w(1-D)), after optional trimming.
func (e *ATEEstimator) estimateIPW(ds *causal.Dataset, scores []float64, cfg causal.EstimateConfig, diag *causal.Diagnostics) (float64, error) {
	engine := NewWeightEngine(cfg.ExtremeWeightThreshold)
	weights, err := engine.ComputeWeights(ds.Treatments(), scores)
	if err != nil {
		return 0, err
	}

	kept := make([]int, len(weights))
	for i := range kept {
		kept[i] = i
	}
	if cfg.TrimPolicy == causal.TrimClamp || cfg.TrimPolicy == causal.TrimExclude {
		weights, kept, err = engine.Trim(weights, cfg.TrimLower, cfg.TrimUpper, cfg.TrimPolicy)
		if err != nil {
			return 0, err
		}
		diag.ExcludedUnits = ds.Len() - len(kept)
	}

	summary, err := engine.Summary(weights)
	if err != nil {
		return 0, err
	}
	diag.Weights = &summary

	var sumWT, sumWTY, sumWC, sumWCY float64
	for k, i := range kept {
		u := ds.Units[i]
		w := weights[k]
		if u.Treatment == 1 {
			sumWT += w
			sumWTY += w * u.Outcome
		} else {
			sumWC += w
			sumWCY += w * u.Outcome
		}
	}
	if sumWT == 0 || sumWC == 0 {
		return 0, errors.InsufficientData("an arm has zero total weight after trimming").
			WithDetail("treated_weight", sumWT).WithDetail("control_weight", sumWC)
	}
	return sumWTY/sumWT - sumWCY/sumWC, nil
}

// estimateDR computes the augmented IPW estimator
//
//	mean[ m1 - m0 + D(Y-m1)/e - (1-D)(Y-m0)/(1-e) ]
//
// which stays consistent when either the propensity or the outcome model is
// correctly specified. The code only computes the formula faithfully; that
// property belongs to the caller-supplied models.
func (e *ATEEstimator) estimateDR(ds *causal.Dataset, scores []float64, cfg causal.EstimateConfig, diag *causal.Diagnostics) (float64, error) {
	covariates := ds.Covariates()
	fitted, err := e.outcome.Fit(covariates, ds.Treatments(), ds.Outcomes())
	if err != nil {
		return 0, err
	}
	m1, err := fitted.PredictCounterfactual(covariates, 1)
	if err != nil {
		return 0, err
	}
	m0, err := fitted.PredictCounterfactual(covariates, 0)
	if err != nil {
		return 0, err
	}

	engine := NewWeightEngine(cfg.ExtremeWeightThreshold)
	weights, err := engine.ComputeWeights(ds.Treatments(), scores)
	if err != nil {
		return 0, err
	}
	summary, err := engine.Summary(weights)
	if err != nil {
		return 0, err
	}
	diag.Weights = &summary

	total := 0.0
	for i, u := range ds.Units {
		term := m1[i] - m0[i]
		if u.Treatment == 1 {
			term += (u.Outcome - m1[i]) / scores[i]
		} else {
			term -= (u.Outcome - m0[i]) / (1 - scores[i])
		}
		total += term
	}
	return total / float64(ds.Len()), nil
}
