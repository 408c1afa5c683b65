package app

import (
	"context"
	"testing"

	"gocausal/adapters/stats/model"
	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/config"
	"gocausal/internal/errors"
	"gocausal/internal/estimator"
	"gocausal/internal/testkit"
	"gocausal/ports"
)

// memoryResults is a map-backed result store for service tests.
type memoryResults struct {
	saved map[core.RunID]*causal.ATEResult
}

func newMemoryResults() *memoryResults {
	return &memoryResults{saved: make(map[core.RunID]*causal.ATEResult)}
}

func (m *memoryResults) Save(ctx context.Context, result *causal.ATEResult) error {
	m.saved[result.ID] = result
	return nil
}

func (m *memoryResults) Get(ctx context.Context, id core.RunID) (*causal.ATEResult, error) {
	if r, ok := m.saved[id]; ok {
		return r, nil
	}
	return nil, errors.NotFound("result")
}

func (m *memoryResults) List(ctx context.Context, limit int) ([]*causal.ATEResult, error) {
	var out []*causal.ATEResult
	for _, r := range m.saved {
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func testDefaults() config.EstimationConfig {
	return config.EstimationConfig{
		PositivityEpsilon:      1e-6,
		MaxClippedFraction:     0.02,
		ExtremeWeightThreshold: 10,
		MatchRatio:             1,
	}
}

func testDataset(t *testing.T) *causal.Dataset {
	t.Helper()
	cfg := testkit.DefaultObservationalConfig()
	cfg.Rows = 300
	ds, err := testkit.NewObservationalGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return ds
}

func newTestService(results ports.ResultRepository) *EstimationService {
	est := estimator.NewATEEstimator(model.NewLogisticRegression(), model.NewOLSOutcomeModel())
	return NewEstimationService(est, results, testDefaults())
}

func TestService_AppliesDefaultsToEmptyConfig(t *testing.T) {
	service := newTestService(nil)

	result, err := service.Estimate(context.Background(), EstimateRequest{
		Dataset: testDataset(t),
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if result.Method != causal.MethodDR {
		t.Fatalf("expected default method dr, got %s", result.Method)
	}
	if result.Diagnostics.Propensity.Epsilon != 1e-6 {
		t.Fatalf("expected default epsilon, got %v", result.Diagnostics.Propensity.Epsilon)
	}
}

func TestService_PersistsWhenRequested(t *testing.T) {
	store := newMemoryResults()
	service := newTestService(store)

	result, err := service.Estimate(context.Background(), EstimateRequest{
		Dataset: testDataset(t),
		Config:  causal.EstimateConfig{Method: causal.MethodIPW},
		Persist: true,
	})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}

	stored, err := store.Get(context.Background(), result.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Estimate != result.Estimate {
		t.Fatalf("stored estimate %v differs from returned %v", stored.Estimate, result.Estimate)
	}
}

func TestService_PersistWithoutStoreFails(t *testing.T) {
	service := newTestService(nil)

	_, err := service.Estimate(context.Background(), EstimateRequest{
		Dataset: testDataset(t),
		Persist: true,
	})
	if err == nil {
		t.Fatal("expected an error when persisting without a store")
	}
	if code := errors.GetCode(err); code != errors.CodeConfigInvalid {
		t.Fatalf("expected %s, got %s", errors.CodeConfigInvalid, code)
	}
}

func TestService_NilDatasetRejected(t *testing.T) {
	service := newTestService(nil)

	_, err := service.Estimate(context.Background(), EstimateRequest{})
	if err == nil {
		t.Fatal("expected an error for a nil dataset")
	}
	if code := errors.GetCode(err); code != errors.CodeInvalidInput {
		t.Fatalf("expected %s, got %s", errors.CodeInvalidInput, code)
	}
}
