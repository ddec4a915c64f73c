// Package server assembles the brain HTTP API: router, middleware,
// health probes, and graceful shutdown over the services.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/CLIAIBRAIN/internal/claims"
	"github.com/CLIAIBRAIN/internal/entries"
	"github.com/CLIAIBRAIN/internal/handlers"
	"github.com/CLIAIBRAIN/internal/logging"
	"github.com/CLIAIBRAIN/internal/metadata"
	"github.com/CLIAIBRAIN/internal/metrics"
	"github.com/CLIAIBRAIN/internal/notebook"
	"github.com/CLIAIBRAIN/internal/types"
)

// Server is the brain API server
type Server struct {
	cfg        types.ServerConfig
	httpServer *http.Server
	router     *mux.Router

	nb      *notebook.Notebook
	meta    metadata.Store
	entries *entries.Service
	claims  *claims.Registry

	log       zerolog.Logger
	startTime time.Time
}

// NewServer wires the services and routes. The claim registry starts
// empty; runners re-claim on startup.
func NewServer(cfg types.ServerConfig, nb *notebook.Notebook, meta metadata.Store) *Server {
	home, _ := os.UserHomeDir()

	s := &Server{
		cfg:       cfg,
		nb:        nb,
		meta:      meta,
		entries:   entries.NewService(nb, meta),
		claims:    claims.NewRegistry(),
		log:       logging.WithComponent("server"),
		startTime: time.Now(),
	}
	s.setupRoutes(home)
	return s
}

// setupRoutes configures the router and middleware chain
func (s *Server) setupRoutes(home string) {
	s.router = mux.NewRouter()
	s.router.Use(recoverMiddleware, requestLogMiddleware, instrumentMiddleware)

	// probes outside the /api/v1 prefix
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	classifier := handlers.NewClassifier(s.nb, home)
	handlers.NewEntriesHandler(s.entries).RegisterRoutes(api)
	handlers.NewSearchHandler(s.entries).RegisterRoutes(api)
	handlers.NewTasksHandler(classifier, s.claims).RegisterRoutes(api)
	handlers.NewFeaturesHandler(classifier).RegisterRoutes(api)
}

// Handler exposes the router for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Claims exposes the registry, mainly for tests
func (s *Server) Claims() *claims.Registry {
	return s.claims
}

// Start listens and serves until Shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Str("brain_dir", s.cfg.BrainDir).Msg("server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the metadata store
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down")
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if cerr := s.meta.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// healthReport is the health probe response
type healthReport struct {
	Status           string `json:"status"`
	BackendAvailable bool   `json:"backendAvailable"`
	DBAvailable      bool   `json:"dbAvailable"`
	ActiveClaims     int    `json:"activeClaims"`
	UptimeSeconds    int64  `json:"uptimeSeconds"`
	Timestamp        string `json:"timestamp"`
}

// handleHealth reports degraded when the rich backend is missing and
// unhealthy when the metadata store is unreachable
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backendOK := s.nb.Available(r.Context())
	dbOK := s.meta.Ping() == nil

	setGauge(metrics.BackendUp, backendOK)
	setGauge(metrics.DBUp, dbOK)

	status := "healthy"
	code := http.StatusOK
	switch {
	case !dbOK:
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	case !backendOK:
		status = "degraded"
	}

	report := healthReport{
		Status:           status,
		BackendAvailable: backendOK,
		DBAvailable:      dbOK,
		ActiveClaims:     s.claims.Count(),
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeBody(w, report)
}
