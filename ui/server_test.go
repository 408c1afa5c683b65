package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gocausal/adapters/stats/model"
	"gocausal/app"
	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/config"
	"gocausal/internal/errors"
	"gocausal/internal/estimator"
	"gocausal/internal/testkit"
	"gocausal/ports"
)

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

func newTestServer(results ports.ResultRepository) *Server {
	est := estimator.NewATEEstimator(model.NewLogisticRegression(), model.NewOLSOutcomeModel())
	defaults := config.EstimationConfig{
		PositivityEpsilon:      1e-6,
		MaxClippedFraction:     0.02,
		ExtremeWeightThreshold: 10,
		MatchRatio:             1,
	}
	service := app.NewEstimationService(est, results, defaults)
	return NewServer(service, results)
}

func estimateBody(t *testing.T, persist bool) []byte {
	t.Helper()
	cfg := testkit.DefaultObservationalConfig()
	cfg.Rows = 200
	ds, err := testkit.NewObservationalGenerator(cfg).Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	body := EstimateRequestBody{
		CovariateNames: ds.Names,
		Covariates:     ds.Covariates(),
		Treatment:      ds.Treatments(),
		Outcome:        ds.Outcomes(),
		Config:         causal.EstimateConfig{Method: causal.MethodIPW},
		Persist:        persist,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServer_EstimateRoundTrip(t *testing.T) {
	store := newMemoryResults()
	srv := newTestServer(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/estimate", bytes.NewReader(estimateBody(t, true)))
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result causal.ATEResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Method != causal.MethodIPW || result.SampleSize != 200 {
		t.Fatalf("unexpected result: %+v", result)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/"+result.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching stored result, got %d", rec.Code)
	}
}

func TestServer_MalformedBodyIsBadRequest(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/estimate", bytes.NewReader([]byte("{not json")))
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestServer_MismatchedLengthsAreBadRequest(t *testing.T) {
	srv := newTestServer(nil)
	body, _ := json.Marshal(EstimateRequestBody{
		Covariates: [][]float64{{1}, {2}},
		Treatment:  []int{1},
		Outcome:    []float64{1, 2},
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/estimate", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestServer_SingleArmIsUnprocessable(t *testing.T) {
	srv := newTestServer(nil)
	body, _ := json.Marshal(EstimateRequestBody{
		Covariates: [][]float64{{1}, {2}, {3}, {4}},
		Treatment:  []int{1, 1, 1, 1},
		Outcome:    []float64{1, 2, 3, 4},
		Config:     causal.EstimateConfig{Method: causal.MethodIPW},
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/estimate", bytes.NewReader(body)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_UnknownResultIs404(t *testing.T) {
	srv := newTestServer(newMemoryResults())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/no-such-id", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServer_ResultsWithoutStoreIsBadRequest(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
