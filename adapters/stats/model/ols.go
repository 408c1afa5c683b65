package model

import (
	"gocausal/internal/errors"
	"gocausal/ports"

	"gonum.org/v1/gonum/mat"
)

// OLSOutcomeModel is the reference outcome model: ordinary least squares of
// outcome on treatment plus covariates, additive with no interaction terms.
// That additivity is a modeling choice, not a contract; richer models can
// replace it behind the same port.
type OLSOutcomeModel struct{}

// NewOLSOutcomeModel creates the reference OLS outcome model
func NewOLSOutcomeModel() *OLSOutcomeModel {
	return &OLSOutcomeModel{}
}

// Fit solves the least-squares regression of outcome on [1, D, X...]
func (m *OLSOutcomeModel) Fit(covariates [][]float64, treatment []int, outcome []float64) (ports.FittedOutcomeModel, error) {
	n := len(covariates)
	if n == 0 || n != len(treatment) || n != len(outcome) {
		return nil, errors.InvalidInput("covariates, treatment and outcome must have equal length").
			WithDetail("rows", n).WithDetail("labels", len(treatment)).WithDetail("outcomes", len(outcome))
	}
	p := len(covariates[0]) + 2 // intercept + treatment
	if n <= p {
		return nil, errors.ModelFitError("more parameters than observations").
			WithDetail("rows", n).WithDetail("parameters", p)
	}

	design := mat.NewDense(n, p, designMatrix(covariates, treatment))
	y := mat.NewVecDense(n, nil)
	for i, v := range outcome {
		y.SetVec(i, v)
	}

	beta := mat.NewVecDense(p, nil)
	if err := beta.SolveVec(design, y); err != nil {
		return nil, errors.ModelFitError("design matrix is rank-deficient")
	}

	coefs := make([]float64, p)
	for j := range coefs {
		coefs[j] = beta.AtVec(j)
	}
	return &FittedOLS{coefficients: coefs}, nil
}

// FittedOLS holds the least-squares solution: intercept, treatment
// coefficient, then covariate coefficients.
type FittedOLS struct {
	coefficients []float64
}

// PredictCounterfactual predicts outcomes with the treatment regressor
// forced to treatmentValue for every row, covariates held fixed. This is a
// counterfactual prediction, not a resample.
func (f *FittedOLS) PredictCounterfactual(covariates [][]float64, treatmentValue int) ([]float64, error) {
	if treatmentValue != 0 && treatmentValue != 1 {
		return nil, errors.InvalidInput("counterfactual treatment value must be 0 or 1").
			WithDetail("value", treatmentValue)
	}
	p := len(f.coefficients)
	out := make([]float64, len(covariates))
	for i, row := range covariates {
		if len(row) != p-2 {
			return nil, errors.InvalidInput("covariate dimensionality does not match fitted model").
				WithDetail("unit", i).WithDetail("want", p-2).WithDetail("got", len(row))
		}
		pred := f.coefficients[0] + f.coefficients[1]*float64(treatmentValue)
		for j, v := range row {
			pred += f.coefficients[j+2] * v
		}
		out[i] = pred
	}
	return out, nil
}

// Coefficients returns the fitted parameters: intercept, treatment, covariates
func (f *FittedOLS) Coefficients() []float64 {
	out := make([]float64, len(f.coefficients))
	copy(out, f.coefficients)
	return out
}
