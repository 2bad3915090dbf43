// Package usgs implements the remote fetch client for the USGS Water
// Services instantaneous-value (nwis/iv) and daily-value (nwis/dv) endpoints.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/observability"
)

const (
	defaultIVURL = "https://waterservices.usgs.gov/nwis/iv/"
	defaultDVURL = "https://waterservices.usgs.gov/nwis/dv/"

	// statMean selects the daily mean aggregate (00001=max, 00002=min).
	statMean = "00003"
)

// Client fetches observation series from the USGS Water Services API.
// It performs no retries; transient failures surface as
// domain.ErrRemoteUnavailable and the caller decides what to do.
type Client struct {
	httpClient *http.Client
	ivURL      string
	dvURL      string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a USGS client with a bounded request timeout.
func NewClient(timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		ivURL:      defaultIVURL,
		dvURL:      defaultDVURL,
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch retrieves the series described by req. The trailing window resolves
// against the domain clock at call time. A successful response with zero
// observations yields an empty series, not an error.
func (c *Client) Fetch(ctx context.Context, req domain.Request) (domain.Series, error) {
	if err := req.Validate(); err != nil {
		return domain.Series{}, err
	}
	start, end := req.Window.Bounds(domain.Now())

	var fullURL, endpoint string
	switch req.Kind {
	case domain.KindInstantaneous:
		endpoint = "iv"
		params := url.Values{
			"format":      {"json"},
			"sites":       {req.Site},
			"parameterCd": {string(req.Parameter)},
			"startDT":     {start.Format("2006-01-02T15:04Z")},
			"endDT":       {end.Format("2006-01-02T15:04Z")},
			"siteStatus":  {"all"},
		}
		fullURL = c.ivURL + "?" + params.Encode()
	case domain.KindDaily:
		endpoint = "dv"
		params := url.Values{
			"format":      {"json"},
			"sites":       {req.Site},
			"parameterCd": {string(req.Parameter)},
			"statCd":      {statMean},
			"startDT":     {start.Format("2006-01-02")},
			"endDT":       {end.Format("2006-01-02")},
		}
		fullURL = c.dvURL + "?" + params.Encode()
	}

	started := time.Now()
	env, err := c.doRequest(ctx, fullURL)
	c.metrics.FetchDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(endpoint, "error").Inc()
		return domain.Series{}, err
	}

	series, err := buildSeries(req, env)
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(endpoint, "malformed").Inc()
		return domain.Series{}, err
	}

	c.metrics.FetchRequests.WithLabelValues(endpoint, "success").Inc()
	c.logger.Debug("usgs fetch complete",
		"site", req.Site, "parameter", req.Parameter, "kind", req.Kind,
		"window", req.Window.Tag(), "points", len(series.Points))
	return series, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (envelope, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return envelope{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return envelope{}, fmt.Errorf("%w: status %d: %s", domain.ErrRemoteUnavailable, resp.StatusCode, body)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("%w: decode: %v", domain.ErrMalformedResponse, err)
	}
	return env, nil
}

// buildSeries flattens the nested timeSeries envelope into a canonical
// series. Method sub-series are merged; duplicate instants collapse.
func buildSeries(req domain.Request, env envelope) (domain.Series, error) {
	var points []domain.Observation
	for _, ts := range env.Value.TimeSeries {
		noData, hasNoData := ts.Variable.noData()
		for _, block := range ts.Values {
			for _, v := range block.Value {
				obs, err := parsePoint(req.Kind, v, noData, hasNoData)
				if err != nil {
					return domain.Series{}, err
				}
				points = append(points, obs)
			}
		}
	}
	return domain.NewSeries(req.Site, req.Parameter, req.Kind, points), nil
}

func parsePoint(kind domain.Kind, v valuePoint, noData float64, hasNoData bool) (domain.Observation, error) {
	instant, err := parseInstant(kind, v.DateTime)
	if err != nil {
		return domain.Observation{}, err
	}

	obs := domain.Observation{Instant: instant, Qualifiers: v.Qualifiers}
	if v.Value == "" {
		return obs, nil
	}
	val, err := strconv.ParseFloat(v.Value, 64)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("%w: value %q at %s", domain.ErrMalformedResponse, v.Value, v.DateTime)
	}
	if hasNoData && val == noData {
		return obs, nil
	}
	obs.Value = &val
	return obs, nil
}

// parseInstant converts a USGS dateTime string to a UTC instant. IV stamps
// carry the site's local offset; DV stamps are date-only and become UTC
// midnight of the civil date.
func parseInstant(kind domain.Kind, s string) (time.Time, error) {
	if kind == domain.KindDaily {
		if len(s) < len("2006-01-02") {
			return time.Time{}, fmt.Errorf("%w: dateTime %q", domain.ErrMalformedResponse, s)
		}
		d, err := time.Parse("2006-01-02", s[:len("2006-01-02")])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: dateTime %q", domain.ErrMalformedResponse, s)
		}
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: dateTime %q", domain.ErrMalformedResponse, s)
	}
	return t.UTC(), nil
}
