// Package server provides the HTTP surface used by the external health probe
// and operators.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/health"
	"github.com/geonyeop123/premium-spread-sub000/internal/lookup"
	"github.com/geonyeop123/premium-spread-sub000/internal/work"
)

// Prober reports job and host health.
type Prober interface {
	Jobs(ctx context.Context) []health.JobStatus
	System() health.SystemStats
}

// Quotes answers latest-value reads.
type Quotes interface {
	LatestPremium(ctx context.Context, symbol string) (*lookup.Quote, error)
	LatestTicker(ctx context.Context, exchange, symbol string) (*lookup.Quote, error)
	LatestFx(ctx context.Context, base, quote domain.Currency) (*lookup.Quote, error)
}

// JobRunner triggers a job outside its schedule.
type JobRunner interface {
	RunNow(ctx context.Context, name string) (work.Result, error)
}

// Schedule reports upcoming trigger times keyed by job name.
type Schedule interface {
	NextRuns() map[string]time.Time
}

// Counters exposes the in-process metric series.
type Counters interface {
	Snapshot() map[string]int64
}

// Config holds server configuration
type Config struct {
	Log      zerolog.Logger
	Port     int
	Probe    Prober
	Quotes   Quotes
	Jobs     JobRunner
	Schedule Schedule
	Counters Counters
	// Checks are dependency pings (e.g. "redis", "sqlite") run by GET /health.
	Checks   map[string]func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	port     int
	probe    Prober
	quotes   Quotes
	jobs     JobRunner
	schedule Schedule
	counters Counters
	checks   map[string]func(ctx context.Context) error
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		port:     cfg.Port,
		probe:    cfg.Probe,
		quotes:   cfg.Quotes,
		jobs:     cfg.Jobs,
		schedule: cfg.Schedule,
		counters: cfg.Counters,
		checks:   cfg.Checks,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(10 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/health/jobs", s.handleJobs)
	s.router.Get("/health/metrics", s.handleMetrics)

	s.router.Route("/api", func(r chi.Router) {
		if s.quotes != nil {
			r.Route("/quotes", func(r chi.Router) {
				r.Get("/premium/{symbol}", s.handlePremiumQuote)
				r.Get("/ticker/{exchange}/{symbol}", s.handleTickerQuote)
				r.Get("/fx/{base}/{quote}", s.handleFxQuote)
			})
		}
		if s.jobs != nil {
			r.Post("/jobs/{name}/run", s.handleRunJob)
		}
	})
}

// Handler returns the router (tests).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// probes poll constantly; keep them out of info logs
		event := s.log.Info()
		if ww.Status() < http.StatusBadRequest && strings.HasPrefix(r.URL.Path, "/health") {
			event = s.log.Debug()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
