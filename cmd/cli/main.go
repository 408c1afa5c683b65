package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gocausal/adapters/excel"
	"gocausal/adapters/stats/model"
	"gocausal/domain/causal"
	"gocausal/internal/estimator"
	"gocausal/internal/testkit"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gocausal",
	Short: "Average treatment effect estimation from observational data",
	Long: `gocausal estimates average treatment effects from observational
datasets using propensity scores: nearest-neighbor matching, inverse
probability weighting, and doubly-robust estimation.`,
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate an ATE from a CSV or Excel file",
	RunE:  runEstimate,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the estimator on a synthetic observational dataset",
	RunE:  runSimulate,
}

var (
	flagFile       string
	flagCovariates []string
	flagTreatment  string
	flagOutcome    string
	flagMethod     string
	flagMatchRatio int
	flagCaliper    float64
	flagEpsilon    float64
	flagTrimPolicy string
	flagTrimLower  float64
	flagTrimUpper  float64
	flagBootstrap  int
	flagSeed       int64

	flagRows   int
	flagEffect float64
)

func init() {
	estimateCmd.Flags().StringVar(&flagFile, "file", "", "path to a .csv or .xlsx dataset (required)")
	estimateCmd.Flags().StringSliceVar(&flagCovariates, "covariates", nil, "covariate column names (required)")
	estimateCmd.Flags().StringVar(&flagTreatment, "treatment", "", "binary treatment column name (required)")
	estimateCmd.Flags().StringVar(&flagOutcome, "outcome", "", "outcome column name (required)")
	estimateCmd.MarkFlagRequired("file")
	estimateCmd.MarkFlagRequired("covariates")
	estimateCmd.MarkFlagRequired("treatment")
	estimateCmd.MarkFlagRequired("outcome")

	for _, cmd := range []*cobra.Command{estimateCmd, simulateCmd} {
		cmd.Flags().StringVar(&flagMethod, "method", "dr", "estimation method: matching, ipw or dr")
		cmd.Flags().IntVar(&flagMatchRatio, "match-ratio", 1, "controls matched per treated unit")
		cmd.Flags().Float64Var(&flagCaliper, "caliper", 0, "max propensity distance for a match (0 disables)")
		cmd.Flags().Float64Var(&flagEpsilon, "epsilon", 1e-6, "propensity clipping bound")
		cmd.Flags().StringVar(&flagTrimPolicy, "trim", "none", "weight trimming policy: none, clamp or exclude")
		cmd.Flags().Float64Var(&flagTrimLower, "trim-lower", 0.01, "lower trim quantile")
		cmd.Flags().Float64Var(&flagTrimUpper, "trim-upper", 0.99, "upper trim quantile")
		cmd.Flags().IntVar(&flagBootstrap, "bootstrap", 0, "bootstrap replicates (0 disables)")
		cmd.Flags().Int64Var(&flagSeed, "seed", 42, "bootstrap seed")
	}

	simulateCmd.Flags().IntVar(&flagRows, "rows", 2000, "synthetic sample size")
	simulateCmd.Flags().Float64Var(&flagEffect, "effect", 2.0, "true treatment effect")

	rootCmd.AddCommand(estimateCmd, simulateCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildConfig() (causal.EstimateConfig, error) {
	method, err := causal.ParseMethod(flagMethod)
	if err != nil {
		return causal.EstimateConfig{}, err
	}
	cfg := causal.DefaultEstimateConfig()
	cfg.Method = method
	cfg.MatchRatio = flagMatchRatio
	cfg.Caliper = flagCaliper
	cfg.PositivityEpsilon = flagEpsilon
	cfg.TrimPolicy = causal.TrimPolicy(strings.ToLower(flagTrimPolicy))
	cfg.TrimLower = flagTrimLower
	cfg.TrimUpper = flagTrimUpper
	cfg.BootstrapReplicates = flagBootstrap
	cfg.Seed = flagSeed
	return cfg, nil
}

func runEstimate(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	schema := causal.Schema{
		Covariates: flagCovariates,
		Treatment:  flagTreatment,
		Outcome:    flagOutcome,
	}
	reader := excel.NewDataReader(flagFile)
	ds, err := reader.Read(context.Background(), schema)
	if err != nil {
		return err
	}

	return runAndPrint(ds, cfg)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	genCfg := testkit.DefaultObservationalConfig()
	genCfg.Rows = flagRows
	genCfg.TrueEffect = flagEffect
	genCfg.Seed = flagSeed
	ds, err := testkit.NewObservationalGenerator(genCfg).Generate()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "simulated %d units, true effect %.4f\n", ds.Len(), genCfg.TrueEffect)
	return runAndPrint(ds, cfg)
}

func runAndPrint(ds *causal.Dataset, cfg causal.EstimateConfig) error {
	est := estimator.NewATEEstimator(model.NewLogisticRegression(), model.NewOLSOutcomeModel())
	result, err := est.Estimate(context.Background(), ds, cfg)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
