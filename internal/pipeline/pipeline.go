// Package pipeline orchestrates a complete processing run for one gauge
// request: resolve the series through the cache, normalize it, characterize
// its cadence and gaps, and derive rolling features and anomaly flags.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/observability"
)

// SeriesProvider resolves a request to a canonical series, fetching through
// fetch on a miss. *cache.Store satisfies this.
type SeriesProvider interface {
	GetOrFetch(ctx context.Context, req domain.Request, fetch func(ctx context.Context, req domain.Request) (domain.Series, error)) (domain.Series, error)
}

// Fetcher retrieves a series from the upstream source.
type Fetcher interface {
	Fetch(ctx context.Context, req domain.Request) (domain.Series, error)
}

// AnomalySink receives the anomalies flagged by a run. Publishing is best
// effort; a sink failure never fails the run.
type AnomalySink interface {
	PublishAnomalies(ctx context.Context, events []domain.AnomalyEvent) error
}

// Result is everything one run derives from a request.
type Result struct {
	Request domain.Request `json:"request"`

	// Series is the canonical UTC series resolved for the request.
	Series domain.Series `json:"series"`
	// Local is the series in naive local wall-clock time for display.
	// Nil for daily series, which have no meaningful local rendering.
	Local *domain.LocalSeries `json:"local,omitempty"`

	// ExpectedInterval is zero when the series is too short to infer one;
	// Gaps, Summary, and Grid are then zero-valued as well.
	ExpectedInterval time.Duration    `json:"expected_interval_ns"`
	Gaps             domain.GapReport `json:"gaps"`
	Summary          domain.Summary   `json:"summary"`
	Grid             domain.Series    `json:"grid"`

	Features  []domain.FeatureRow   `json:"features"`
	Daily     []domain.DailyStat    `json:"daily,omitempty"`
	Anomalies []domain.AnomalyEvent `json:"anomalies"`
}

// Pipeline wires the cache, fetcher, and derivation steps together.
type Pipeline struct {
	provider SeriesProvider
	fetcher  Fetcher
	sink     AnomalySink

	loc          *time.Location
	features     domain.FeatureParams
	gapTolerance float64

	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline. loc is the wall-clock zone for display series;
// gapTolerance is the spacing multiple beyond which a gap is reported.
func New(provider SeriesProvider, fetcher Fetcher, loc *time.Location, features domain.FeatureParams, gapTolerance float64, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		provider:     provider,
		fetcher:      fetcher,
		loc:          loc,
		features:     features,
		gapTolerance: gapTolerance,
		logger:       logger,
		metrics:      metrics,
	}
}

// SetAnomalySink attaches an optional sink for flagged anomalies.
func (p *Pipeline) SetAnomalySink(sink AnomalySink) {
	p.sink = sink
}

// CheckReadiness returns nil once at least one run has completed, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes one complete pass for the request. The remote source is only
// contacted when the cache has no usable entry.
func (p *Pipeline) Run(ctx context.Context, req domain.Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	start := time.Now()

	series, err := p.provider.GetOrFetch(ctx, req, p.fetcher.Fetch)
	if err != nil {
		return Result{}, fmt.Errorf("resolve series %s: %w", req.CacheKey(), err)
	}

	res := Result{Request: req, Series: series}

	if interval, ok := domain.ExpectedInterval(series); ok {
		res.ExpectedInterval = interval
		res.Gaps = domain.FindGaps(series, interval, p.gapTolerance)
		res.Summary = domain.Summarize(series, interval)
		res.Grid = domain.ToRegularGrid(series, interval)
	}

	if req.Kind == domain.KindInstantaneous {
		local, err := domain.ToLocalNaive(series, p.loc)
		if err != nil {
			return Result{}, fmt.Errorf("localize series: %w", err)
		}
		res.Local = &local
		res.Daily = domain.DailyStats(series)
	}

	// Features come off the regular grid when one exists so that rolling
	// windows cover consistent spans of time, not just of samples.
	featureInput := series
	if !res.Grid.Empty() {
		featureInput = res.Grid
	}
	res.Features = domain.DeriveFeatures(featureInput, p.features)
	res.Anomalies = domain.Anomalies(req.Site, req.Parameter, req.Kind, res.Features, p.features.ZThreshold)

	p.metrics.PipelineRuns.Inc()
	p.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	p.metrics.SeriesPoints.Observe(float64(len(series.Points)))
	p.metrics.AnomaliesFlagged.Add(float64(len(res.Anomalies)))

	p.publish(ctx, res)

	p.ready.Store(true)
	p.logger.Info("pipeline run complete",
		"key", req.CacheKey(),
		"points", len(series.Points),
		"gaps", len(res.Gaps.Gaps),
		"anomalies", len(res.Anomalies),
		"duration", time.Since(start))
	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, res Result) {
	if p.sink == nil || len(res.Anomalies) == 0 {
		return
	}
	if err := p.sink.PublishAnomalies(ctx, res.Anomalies); err != nil {
		p.logger.Warn("anomaly publish failed",
			"key", res.Request.CacheKey(), "count", len(res.Anomalies), "error", err)
	}
}
