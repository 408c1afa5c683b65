package ui

import (
	"encoding/json"
	"net/http"
	"strconv"

	"gocausal/app"
	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/errors"

	"github.com/go-chi/chi/v5"
)

// EstimateRequestBody is the JSON shape of POST /estimate. Rows arrive
// inline; the schema names align covariate columns for diagnostics.
type EstimateRequestBody struct {
	CovariateNames []string              `json:"covariate_names"`
	Covariates     [][]float64           `json:"covariates"`
	Treatment      []int                 `json:"treatment"`
	Outcome        []float64             `json:"outcome"`
	Config         causal.EstimateConfig `json:"config"`
	Persist        bool                  `json:"persist"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var body EstimateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errors.InvalidInput("malformed request body"))
		return
	}

	ds, err := datasetFromBody(body)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.service.Estimate(r.Context(), app.EstimateRequest{
		Dataset: ds,
		Config:  body.Config,
		Persist: body.Persist,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeError(w, errors.ConfigInvalid("no result store is configured"))
		return
	}
	id, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.InvalidInput(err.Error()))
		return
	}
	result, err := s.results.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	if s.results == nil {
		writeError(w, errors.ConfigInvalid("no result store is configured"))
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	results, err := s.results.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// datasetFromBody assembles the inline rows into a Dataset
func datasetFromBody(body EstimateRequestBody) (*causal.Dataset, error) {
	n := len(body.Covariates)
	if n == 0 || n != len(body.Treatment) || n != len(body.Outcome) {
		return nil, errors.InvalidInput("covariates, treatment and outcome must have equal non-zero length").
			WithDetail("covariates", n).
			WithDetail("treatment", len(body.Treatment)).
			WithDetail("outcome", len(body.Outcome))
	}
	names := body.CovariateNames
	if len(names) == 0 && n > 0 {
		names = make([]string, len(body.Covariates[0]))
		for j := range names {
			names[j] = "x" + strconv.Itoa(j+1)
		}
	}
	units := make([]causal.Unit, n)
	for i := 0; i < n; i++ {
		units[i] = causal.Unit{
			Index:      i,
			Covariates: body.Covariates[i],
			Treatment:  body.Treatment[i],
			Outcome:    body.Outcome[i],
		}
	}
	return &causal.Dataset{Names: names, Units: units}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps error codes onto HTTP statuses and surfaces the detail
// payload so callers can diagnose without re-running.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := errors.GetCode(err)
	switch code {
	case errors.CodeInvalidInput, errors.CodeConfigInvalid:
		status = http.StatusBadRequest
	case errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeModelFit, errors.CodePositivity, errors.CodeInsufficientData:
		status = http.StatusUnprocessableEntity
	}
	resp := map[string]interface{}{
		"code":  code,
		"error": err.Error(),
	}
	if appErr, ok := err.(*errors.AppError); ok && appErr.Details != nil {
		resp["details"] = appErr.Details
	}
	writeJSON(w, status, resp)
}
