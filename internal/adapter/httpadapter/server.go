// Package httpadapter exposes the processing pipeline over HTTP alongside
// the standard health, readiness, and metrics routes.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/river-gauge-etl/internal/cache"
	"github.com/couchcryptid/river-gauge-etl/internal/catalog"
	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/pipeline"
)

// Runner executes one pipeline pass for a request.
type Runner interface {
	Run(ctx context.Context, req domain.Request) (pipeline.Result, error)
}

// CacheAdmin lists and invalidates cache entries.
type CacheAdmin interface {
	List() ([]cache.Entry, error)
	Invalidate(key string) error
	InvalidateAll() error
}

// SiteCatalog lists the configured gauge sites.
type SiteCatalog interface {
	Sites() []catalog.Site
}

// Server serves the gauge API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	runner     Runner
	cache      CacheAdmin
	sites      SiteCatalog
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(addr string, runner Runner, cacheAdmin CacheAdmin, sites SiteCatalog, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runner: runner,
		cache:  cacheAdmin,
		sites:  sites,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/sites", s.handleSites)
	mux.HandleFunc("GET /v1/series", s.handleSeries)
	mux.HandleFunc("GET /v1/features", s.handleFeatures)
	mux.HandleFunc("GET /v1/cache", s.handleCacheList)
	mux.HandleFunc("DELETE /v1/cache", s.handleCacheInvalidate)

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

func (s *Server) handleSites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sites": s.sites.Sites()})
}

// seriesResponse is the /v1/series payload: the observations themselves plus
// the cadence diagnostics, without the feature matrix.
type seriesResponse struct {
	Request          domain.Request      `json:"request"`
	Series           domain.Series       `json:"series"`
	Local            *domain.LocalSeries `json:"local,omitempty"`
	ExpectedInterval time.Duration       `json:"expected_interval_ns"`
	Gaps             domain.GapReport    `json:"gaps"`
	Summary          domain.Summary      `json:"summary"`
	Daily            []domain.DailyStat  `json:"daily,omitempty"`
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writePipelineError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, seriesResponse{
		Request:          res.Request,
		Series:           res.Series,
		Local:            res.Local,
		ExpectedInterval: res.ExpectedInterval,
		Gaps:             res.Gaps,
		Summary:          res.Summary,
		Daily:            res.Daily,
	})
}

// featuresResponse is the /v1/features payload: the derived feature rows and
// the anomalies they flag.
type featuresResponse struct {
	Request   domain.Request        `json:"request"`
	Features  []domain.FeatureRow   `json:"features"`
	Anomalies []domain.AnomalyEvent `json:"anomalies"`
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.runner.Run(r.Context(), req)
	if err != nil {
		s.writePipelineError(w, req, err)
		return
	}

	writeJSON(w, http.StatusOK, featuresResponse{
		Request:   res.Request,
		Features:  finiteFeatures(res.Features),
		Anomalies: finiteAnomalies(res.Anomalies),
	})
}

func (s *Server) handleCacheList(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.cache.List()
	if err != nil {
		s.logger.Error("cache list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read cache index")
		return
	}
	if entries == nil {
		entries = []cache.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")

	var err error
	if key == "" {
		err = s.cache.InvalidateAll()
	} else {
		err = s.cache.Invalidate(key)
	}
	if err != nil {
		s.logger.Error("cache invalidate failed", "key", key, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "key": key})
}

// writePipelineError maps the domain sentinels onto HTTP statuses with a
// remedy in the message.
func (s *Server) writePipelineError(w http.ResponseWriter, req domain.Request, err error) {
	s.logger.Error("pipeline run failed", "key", req.CacheKey(), "error", err)

	switch {
	case errors.Is(err, domain.ErrRemoteUnavailable):
		writeError(w, http.StatusBadGateway, "could not reach USGS water services; retry later")
	case errors.Is(err, domain.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, "USGS water services returned unexpected data")
	case errors.Is(err, domain.ErrCacheCorrupt):
		writeError(w, http.StatusInternalServerError, "cached data could not be read")
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// parseRequest builds a domain request from query parameters. site is
// required; parameter defaults to discharge, kind to instantaneous, and the
// window to 7 days for instantaneous or 1 year for daily.
func parseRequest(r *http.Request) (domain.Request, error) {
	q := r.URL.Query()

	site := q.Get("site")
	if site == "" {
		return domain.Request{}, errors.New("missing required query parameter: site")
	}

	param := domain.ParamDischarge
	var err error
	if p := q.Get("parameter"); p != "" {
		param, err = domain.ParseParameter(p)
		if err != nil {
			return domain.Request{}, err
		}
	}

	kind := domain.KindInstantaneous
	if k := q.Get("kind"); k != "" {
		kind, err = domain.ParseKind(k)
		if err != nil {
			return domain.Request{}, err
		}
	}

	var window domain.Window
	switch kind {
	case domain.KindInstantaneous:
		days := 7
		if d := q.Get("days"); d != "" {
			days, err = strconv.Atoi(d)
			if err != nil || days <= 0 {
				return domain.Request{}, errors.New("days must be a positive integer")
			}
		}
		window = domain.LastDays(days)
	case domain.KindDaily:
		years := 1
		if y := q.Get("years"); y != "" {
			years, err = strconv.Atoi(y)
			if err != nil || years <= 0 {
				return domain.Request{}, errors.New("years must be a positive integer")
			}
		}
		window = domain.LastYears(years)
	}

	req := domain.Request{Site: site, Parameter: param, Kind: kind, Window: window}
	return req, req.Validate()
}

// finiteFeatures nils out non-finite rolling scores, which arise when a
// zero-variance window meets a differing value. encoding/json cannot encode
// them; the IsAnomaly flag preserves the verdict.
func finiteFeatures(rows []domain.FeatureRow) []domain.FeatureRow {
	out := make([]domain.FeatureRow, len(rows))
	for i, row := range rows {
		out[i] = row
		if row.Score != nil && !isFinite(*row.Score) {
			out[i].Score = nil
		}
	}
	return out
}

// finiteAnomalies clamps non-finite scores to the largest finite float so
// the event still encodes with its sign intact.
func finiteAnomalies(events []domain.AnomalyEvent) []domain.AnomalyEvent {
	if events == nil {
		return []domain.AnomalyEvent{}
	}
	out := make([]domain.AnomalyEvent, len(events))
	for i, ev := range events {
		out[i] = ev
		if math.IsInf(ev.Score, 1) {
			out[i].Score = math.MaxFloat64
		} else if math.IsInf(ev.Score, -1) {
			out[i].Score = -math.MaxFloat64
		}
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
