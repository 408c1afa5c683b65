package app

import (
	"context"

	"gocausal/domain/causal"
	"gocausal/internal/config"
	"gocausal/internal/errors"
	"gocausal/internal/estimator"
	"gocausal/ports"
)

// EstimationService orchestrates an estimate call: dataset in, ATEResult
// out, optionally persisted. The estimation core stays persistence-free.
type EstimationService struct {
	estimator *estimator.ATEEstimator
	results   ports.ResultRepository // nil when no store is configured
	defaults  config.EstimationConfig
}

// NewEstimationService wires the estimator with an optional result store
func NewEstimationService(est *estimator.ATEEstimator, results ports.ResultRepository, defaults config.EstimationConfig) *EstimationService {
	return &EstimationService{estimator: est, results: results, defaults: defaults}
}

// EstimateRequest is one estimation job
type EstimateRequest struct {
	Dataset *causal.Dataset
	Config  causal.EstimateConfig
	Persist bool
}

// Estimate fills unset config fields from the service defaults, runs the
// estimator, and persists when asked and a store exists.
func (s *EstimationService) Estimate(ctx context.Context, req EstimateRequest) (*causal.ATEResult, error) {
	if req.Dataset == nil {
		return nil, errors.InvalidInput("estimate request has no dataset")
	}
	cfg := s.applyDefaults(req.Config)

	result, err := s.estimator.Estimate(ctx, req.Dataset, cfg)
	if err != nil {
		return nil, err
	}

	if req.Persist {
		if s.results == nil {
			return nil, errors.ConfigInvalid("persistence requested but no result store is configured")
		}
		if err := s.results.Save(ctx, result); err != nil {
			return nil, errors.Wrap(err, "failed to persist result")
		}
	}
	return result, nil
}

// EstimateFromReader loads a dataset through the reader port first
func (s *EstimationService) EstimateFromReader(ctx context.Context, reader ports.DatasetReader, schema causal.Schema, cfg causal.EstimateConfig, persist bool) (*causal.ATEResult, error) {
	ds, err := reader.Read(ctx, schema)
	if err != nil {
		return nil, err
	}
	return s.Estimate(ctx, EstimateRequest{Dataset: ds, Config: cfg, Persist: persist})
}

// applyDefaults fills zero-valued fields from the environment defaults
func (s *EstimationService) applyDefaults(cfg causal.EstimateConfig) causal.EstimateConfig {
	ref := causal.DefaultEstimateConfig()
	if cfg.Method == "" {
		cfg.Method = ref.Method
	}
	if cfg.MatchRatio == 0 {
		cfg.MatchRatio = s.defaults.MatchRatio
	}
	if cfg.PositivityEpsilon == 0 {
		cfg.PositivityEpsilon = s.defaults.PositivityEpsilon
	}
	if cfg.MaxClippedFraction == 0 {
		cfg.MaxClippedFraction = s.defaults.MaxClippedFraction
	}
	if cfg.ExtremeWeightThreshold == 0 {
		cfg.ExtremeWeightThreshold = s.defaults.ExtremeWeightThreshold
	}
	if cfg.BootstrapWorkers == 0 {
		cfg.BootstrapWorkers = s.defaults.BootstrapWorkers
	}
	if cfg.TrimPolicy == "" {
		cfg.TrimPolicy = causal.TrimNone
	}
	if cfg.TrimPolicy != causal.TrimNone && cfg.TrimLower == 0 && cfg.TrimUpper == 0 {
		cfg.TrimLower = ref.TrimLower
		cfg.TrimUpper = ref.TrimUpper
	}
	if cfg.Seed == 0 {
		cfg.Seed = ref.Seed
	}
	return cfg
}
