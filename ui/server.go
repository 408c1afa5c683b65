package ui

import (
	"fmt"
	"net/http"

	"gocausal/app"
	"gocausal/internal"
	"gocausal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes the estimator over HTTP as plain JSON. It serves data
// structures only; plotting and report rendering belong to external
// collaborators.
type Server struct {
	router  *chi.Mux
	service *app.EstimationService
	results ports.ResultRepository // nil when no store is configured
	logger  *internal.Logger
}

// Config holds server configuration
type Config struct {
	Port string
}

// NewServer creates the HTTP surface over an estimation service
func NewServer(service *app.EstimationService, results ports.ResultRepository) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		results: results,
		logger:  internal.DefaultLogger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/estimate", s.handleEstimate)
	s.router.Get("/results", s.handleListResults)
	s.router.Get("/results/{id}", s.handleGetResult)
}

// Router returns the configured handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Start blocks serving HTTP on the configured port
func (s *Server) Start(cfg Config) error {
	addr := fmt.Sprintf(":%s", cfg.Port)
	s.logger.Info("estimation API listening on %s", addr)
	return http.ListenAndServe(addr, s.router)
}
