package model

import (
	"math"

	"gocausal/internal/errors"
	"gocausal/ports"

	"gonum.org/v1/gonum/mat"
)

// LogisticRegression is the reference propensity model: a maximum-likelihood
// binary classifier fit by iteratively reweighted least squares. The
// log-likelihood is concave, so the solver either converges to the global
// optimum or fails with a ModelFitError after the iteration cap.
type LogisticRegression struct {
	MaxIterations int
	Tolerance     float64
	// ClipEpsilon bounds predictions away from 0 and 1 so downstream
	// weighting never divides by zero.
	ClipEpsilon float64
}

// NewLogisticRegression creates a logistic regression with reference defaults
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		MaxIterations: 100,
		Tolerance:     1e-8,
		ClipEpsilon:   1e-6,
	}
}

// Fit estimates coefficients for P(D=1|X) via IRLS
func (m *LogisticRegression) Fit(covariates [][]float64, treatment []int) (ports.FittedProbabilityModel, error) {
	n := len(covariates)
	if n == 0 || n != len(treatment) {
		return nil, errors.InvalidInput("covariate row count must match treatment length").
			WithDetail("rows", n).WithDetail("labels", len(treatment))
	}

	ones, zeros := 0, 0
	for i, d := range treatment {
		switch d {
		case 1:
			ones++
		case 0:
			zeros++
		default:
			return nil, errors.InvalidInput("treatment must be binary-coded").WithDetail("unit", i)
		}
	}
	if ones == 0 || zeros == 0 {
		return nil, errors.ModelFitError("treatment has no variation").
			WithDetail("treated", ones).WithDetail("control", zeros)
	}

	p := len(covariates[0]) + 1 // intercept column
	if n <= p {
		return nil, errors.ModelFitError("more parameters than observations").
			WithDetail("rows", n).WithDetail("parameters", p)
	}

	design := designMatrix(covariates, nil)
	beta := make([]float64, p)
	eta := make([]float64, n)

	for iter := 0; iter < m.MaxIterations; iter++ {
		// Working response and weights for the current linearization.
		wx := mat.NewDense(n, p, nil)
		wz := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			e := 0.0
			for j := 0; j < p; j++ {
				e += design[i*p+j] * beta[j]
			}
			eta[i] = e
			mu := sigmoid(e)
			// Keep the working weight strictly positive even when the
			// linear predictor saturates.
			if mu < 1e-10 {
				mu = 1e-10
			} else if mu > 1-1e-10 {
				mu = 1 - 1e-10
			}
			w := mu * (1 - mu)
			sw := math.Sqrt(w)
			z := e + (float64(treatment[i])-mu)/w
			for j := 0; j < p; j++ {
				wx.Set(i, j, sw*design[i*p+j])
			}
			wz.SetVec(i, sw*z)
		}

		next := mat.NewVecDense(p, nil)
		if err := next.SolveVec(wx, wz); err != nil {
			return nil, errors.ModelFitError("design matrix is rank-deficient").
				WithDetail("iteration", iter)
		}

		delta := 0.0
		for j := 0; j < p; j++ {
			d := math.Abs(next.AtVec(j) - beta[j])
			if d > delta {
				delta = d
			}
			beta[j] = next.AtVec(j)
		}
		if delta < m.Tolerance {
			return &FittedLogistic{coefficients: beta, clipEpsilon: m.ClipEpsilon}, nil
		}
	}

	return nil, errors.ModelFitError("logistic regression did not converge").
		WithDetail("max_iterations", m.MaxIterations)
}

// FittedLogistic holds the IRLS solution, intercept first
type FittedLogistic struct {
	coefficients []float64
	clipEpsilon  float64
}

// Predict returns epsilon-clipped probabilities for the given rows
func (f *FittedLogistic) Predict(covariates [][]float64) ([]float64, error) {
	p := len(f.coefficients)
	out := make([]float64, len(covariates))
	for i, row := range covariates {
		if len(row) != p-1 {
			return nil, errors.InvalidInput("covariate dimensionality does not match fitted model").
				WithDetail("unit", i).WithDetail("want", p-1).WithDetail("got", len(row))
		}
		e := f.coefficients[0]
		for j, v := range row {
			e += f.coefficients[j+1] * v
		}
		mu := sigmoid(e)
		if mu < f.clipEpsilon {
			mu = f.clipEpsilon
		} else if mu > 1-f.clipEpsilon {
			mu = 1 - f.clipEpsilon
		}
		out[i] = mu
	}
	return out, nil
}

// Coefficients returns the fitted parameters, intercept first
func (f *FittedLogistic) Coefficients() []float64 {
	out := make([]float64, len(f.coefficients))
	copy(out, f.coefficients)
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// designMatrix builds a flat row-major [1, (D,) X...] design. The treatment
// column is included only when treatment is non-nil.
func designMatrix(covariates [][]float64, treatment []int) []float64 {
	cols := len(covariates[0]) + 1
	if treatment != nil {
		cols++
	}
	flat := make([]float64, len(covariates)*cols)
	for i, row := range covariates {
		k := i * cols
		flat[k] = 1
		k++
		if treatment != nil {
			flat[k] = float64(treatment[i])
			k++
		}
		copy(flat[k:k+len(row)], row)
	}
	return flat
}
