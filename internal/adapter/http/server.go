package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vagdata/trafik-etl/internal/domain"
	"github.com/vagdata/trafik-etl/internal/pipeline"
	"github.com/vagdata/trafik-etl/internal/store"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// IncidentReader is the dashboard read side backed by the incident store.
type IncidentReader interface {
	ListIncidents(ctx context.Context, f store.IncidentFilter) ([]domain.Incident, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByCounty(ctx context.Context) ([]store.CountyCount, error)
	DailyTrend(ctx context.Context, since time.Time) ([]store.TrendBucket, error)
}

// Refresher triggers a pipeline run on demand.
type Refresher interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// Server exposes health, readiness, metrics, and the incident read API.
type Server struct {
	httpServer *http.Server
	reader     IncidentReader
	refresher  Refresher
	logger     *slog.Logger
}

// NewServer creates an HTTP server. A nil refresher disables POST /api/refresh.
func NewServer(addr string, ready ReadinessChecker, reader IncidentReader, refresher Refresher, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reader:    reader,
		refresher: refresher,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/incidents", s.handleListIncidents)
	mux.HandleFunc("GET /api/stats/status", s.handleStatusCounts)
	mux.HandleFunc("GET /api/stats/counties", s.handleCountyCounts)
	mux.HandleFunc("GET /api/stats/trend", s.handleTrend)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.IncidentFilter{
		Status: q.Get("status"),
		County: q.Get("county"),
		Limit:  defaultListLimit,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = &t
	}

	rows, err := s.reader.ListIncidents(r.Context(), filter)
	if err != nil {
		s.logger.Error("list incidents", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if rows == nil {
		rows = []domain.Incident{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(rows),
		"incidents": rows,
	})
}

func (s *Server) handleStatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.reader.CountByStatus(r.Context())
	if err != nil {
		s.logger.Error("count by status", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleCountyCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.reader.CountByCounty(r.Context())
	if err != nil {
		s.logger.Error("count by county", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if counts == nil {
		counts = []store.CountyCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	days := defaultTrendDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	buckets, err := s.reader.DailyTrend(r.Context(), since)
	if err != nil {
		s.logger.Error("daily trend", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if buckets == nil {
		buckets = []store.TrendBucket{}
	}
	writeJSON(w, http.StatusOK, buckets)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusNotImplemented, "refresh is not enabled")
		return
	}
	summary, err := s.refresher.Run(r.Context())
	if err != nil {
		s.logger.Error("manual refresh", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

const (
	defaultListLimit = 200
	defaultTrendDays = 14
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
