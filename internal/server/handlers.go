package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/geonyeop123/premium-spread-sub000/internal/domain"
	"github.com/geonyeop123/premium-spread-sub000/internal/health"
	"github.com/geonyeop123/premium-spread-sub000/internal/lookup"
)

// handleHealth reports process health and dependency reachability.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	deps := make(map[string]string, len(s.checks))

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := s.checks[name](r.Context()); err != nil {
			s.log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	response := map[string]interface{}{
		"status":       "healthy",
		"service":      "premium-spread",
		"dependencies": deps,
	}
	if status != http.StatusOK {
		response["status"] = "unhealthy"
	}
	if s.probe != nil {
		response["system"] = s.probe.System()
	}

	s.writeJSON(w, status, response)
}

// handleJobs reports per-job liveness; any down job makes the response 503.
// GET /health/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.probe == nil {
		s.writeError(w, http.StatusNotImplemented, "job probe not configured")
		return
	}

	jobs := s.probe.Jobs(r.Context())
	overall := health.Overall(jobs)

	if s.schedule != nil {
		next := s.schedule.NextRuns()
		for i := range jobs {
			if at, ok := next[jobs[i].Name]; ok {
				jobs[i].NextRun = &at
			}
		}
	}

	status := http.StatusOK
	if overall == health.StatusDown {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status": overall,
		"jobs":   jobs,
	})
}

// handleMetrics dumps the in-process counters, e.g. job.execution and
// lookup.miss series, keyed as name{tag=value,...}.
// GET /health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.counters == nil {
		s.writeError(w, http.StatusNotImplemented, "metrics not configured")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"counters": s.counters.Snapshot(),
	})
}

// GET /api/quotes/premium/{symbol}
func (s *Server) handlePremiumQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	q, err := s.quotes.LatestPremium(r.Context(), symbol)
	s.writeQuote(w, q, err)
}

// GET /api/quotes/ticker/{exchange}/{symbol}
func (s *Server) handleTickerQuote(w http.ResponseWriter, r *http.Request) {
	exchange := strings.ToLower(chi.URLParam(r, "exchange"))
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	q, err := s.quotes.LatestTicker(r.Context(), exchange, symbol)
	s.writeQuote(w, q, err)
}

// GET /api/quotes/fx/{base}/{quote}
func (s *Server) handleFxQuote(w http.ResponseWriter, r *http.Request) {
	base := domain.Currency(strings.ToUpper(chi.URLParam(r, "base")))
	quote := domain.Currency(strings.ToUpper(chi.URLParam(r, "quote")))
	q, err := s.quotes.LatestFx(r.Context(), base, quote)
	s.writeQuote(w, q, err)
}

// handleRunJob triggers a job immediately. The job still contends for its lease.
// POST /api/jobs/{name}/run
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	res, err := s.jobs.RunNow(r.Context(), name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	response := map[string]interface{}{
		"job":     name,
		"outcome": res.Outcome(),
	}
	if res.Reason != "" {
		response["reason"] = res.Reason
	}
	if res.Err != nil {
		response["error"] = res.Err.Error()
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) writeQuote(w http.ResponseWriter, q *lookup.Quote, err error) {
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		s.log.Error().Err(err).Msg("Quote lookup failed")
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
	default:
		s.writeJSON(w, http.StatusOK, q)
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
