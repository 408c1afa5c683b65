package ports

// ProbabilityModel fits a binary-outcome probability model (the propensity
// score) from covariates and treatment labels. Logistic regression is the
// reference implementation; anything honoring the contract can substitute.
type ProbabilityModel interface {
	Fit(covariates [][]float64, treatment []int) (FittedProbabilityModel, error)
}

// FittedProbabilityModel predicts treatment probabilities for covariate rows.
// Predictions lie strictly inside (0, 1).
type FittedProbabilityModel interface {
	Predict(covariates [][]float64) ([]float64, error)

	// Coefficients returns the fitted parameters with the intercept first,
	// or nil when the implementation has no linear form.
	Coefficients() []float64
}

// OutcomeModel fits a regression of outcome on treatment plus covariates
type OutcomeModel interface {
	Fit(covariates [][]float64, treatment []int, outcome []float64) (FittedOutcomeModel, error)
}

// FittedOutcomeModel predicts counterfactual outcomes with the treatment
// regressor forced to the given value for every row, covariates held fixed.
type FittedOutcomeModel interface {
	PredictCounterfactual(covariates [][]float64, treatmentValue int) ([]float64, error)
}
