package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Parameter is a USGS parameter code identifying the measured quantity.
type Parameter string

const (
	// ParamDischarge is streamflow in cubic feet per second (USGS 00060).
	ParamDischarge Parameter = "00060"
	// ParamGageHeight is gage height in feet (USGS 00065).
	ParamGageHeight Parameter = "00065"
)

// Label returns the human-friendly column name used in cache artifacts and
// API responses, e.g. "discharge_cfs".
func (p Parameter) Label() string {
	switch p {
	case ParamDischarge:
		return "discharge_cfs"
	case ParamGageHeight:
		return "stage_ft"
	default:
		return string(p)
	}
}

// ParseParameter accepts either a raw USGS code or a friendly name.
func ParseParameter(s string) (Parameter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "00060", "discharge", "discharge_cfs":
		return ParamDischarge, nil
	case "00065", "gage_height", "stage", "stage_ft":
		return ParamGageHeight, nil
	case "":
		return "", errors.New("parameter is required")
	}
	// Unknown five-digit codes pass through so new parameters can be
	// requested without a code change.
	s = strings.TrimSpace(s)
	if len(s) == 5 {
		for _, r := range s {
			if r < '0' || r > '9' {
				return "", fmt.Errorf("unknown parameter %q", s)
			}
		}
		return Parameter(s), nil
	}
	return "", fmt.Errorf("unknown parameter %q", s)
}

// Kind distinguishes the two USGS series flavors. Instantaneous values carry
// full offset timestamps; daily values carry calendar dates only.
type Kind string

const (
	KindInstantaneous Kind = "iv"
	KindDaily         Kind = "dv"
)

// ParseKind accepts "iv"/"instantaneous" or "dv"/"daily".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iv", "instantaneous":
		return KindInstantaneous, nil
	case "dv", "daily":
		return KindDaily, nil
	}
	return "", fmt.Errorf("unknown series kind %q", s)
}

// Observation is one measured value at one instant. Value is nil when the
// service reported no usable number for the instant; the instant is still
// recorded so gap accounting sees it.
type Observation struct {
	Instant    time.Time `json:"instant"`
	Value      *float64  `json:"value"`
	Qualifiers []string  `json:"qualifiers,omitempty"`
}

// Series is an ordered sequence of observations for one site and parameter,
// ascending by instant with no duplicate instants. Instants are absolute UTC;
// for daily series they are UTC midnight of the civil date and act as a
// calendar label rather than a moment in time.
type Series struct {
	Site      string        `json:"site"`
	Parameter Parameter     `json:"parameter"`
	Kind      Kind          `json:"kind"`
	Points    []Observation `json:"points"`
}

// Empty reports whether the series holds no observations.
func (s Series) Empty() bool { return len(s.Points) == 0 }

// NewSeries builds a canonical series: instants forced to UTC, sorted
// ascending, duplicates by instant collapsed keeping the last occurrence.
func NewSeries(site string, param Parameter, kind Kind, points []Observation) Series {
	// Work on a copy; the caller's slice stays untouched.
	points = append([]Observation(nil), points...)
	for i := range points {
		points[i].Instant = points[i].Instant.UTC()
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Instant.Before(points[j].Instant)
	})
	deduped := points[:0]
	for _, p := range points {
		if n := len(deduped); n > 0 && deduped[n-1].Instant.Equal(p.Instant) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return Series{Site: site, Parameter: param, Kind: kind, Points: deduped}
}

// Window is a trailing time range: the last N days for instantaneous
// requests, or the last N years for daily requests. Exactly one of the two
// fields is positive.
type Window struct {
	Days  int `json:"days,omitempty"`
	Years int `json:"years,omitempty"`
}

// LastDays returns a trailing window of n days.
func LastDays(n int) Window { return Window{Days: n} }

// LastYears returns a trailing window of n years.
func LastYears(n int) Window { return Window{Years: n} }

// Tag returns the short window label used in cache keys, e.g. "7d" or "5y".
func (w Window) Tag() string {
	if w.Years > 0 {
		return fmt.Sprintf("%dy", w.Years)
	}
	return fmt.Sprintf("%dd", w.Days)
}

// Bounds resolves the window against now. Years use a fixed 365-day year,
// matching how the windows were defined upstream.
func (w Window) Bounds(now time.Time) (start, end time.Time) {
	end = now.UTC()
	if w.Years > 0 {
		return end.AddDate(0, 0, -365*w.Years), end
	}
	return end.AddDate(0, 0, -w.Days), end
}

// Request identifies one fetchable series: site, parameter, kind, and the
// trailing window. It is the unit the cache is keyed on.
type Request struct {
	Site      string    `json:"site"`
	Parameter Parameter `json:"parameter"`
	Kind      Kind      `json:"kind"`
	Window    Window    `json:"window"`
}

// Validate checks the request is internally consistent: instantaneous
// windows are day-based, daily windows year-based.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Site) == "" {
		return fmt.Errorf("%w: site is required", ErrInvalidRequest)
	}
	if r.Parameter == "" {
		return fmt.Errorf("%w: parameter is required", ErrInvalidRequest)
	}
	switch r.Kind {
	case KindInstantaneous:
		if r.Window.Days <= 0 || r.Window.Years != 0 {
			return fmt.Errorf("%w: instantaneous window must be a positive day count, got %+v", ErrInvalidRequest, r.Window)
		}
	case KindDaily:
		if r.Window.Years <= 0 || r.Window.Days != 0 {
			return fmt.Errorf("%w: daily window must be a positive year count, got %+v", ErrInvalidRequest, r.Window)
		}
	default:
		return fmt.Errorf("%w: unknown series kind %q", ErrInvalidRequest, r.Kind)
	}
	return nil
}

// CacheKey returns the deterministic key for this request. Any difference in
// site, parameter, kind, or window yields a different key.
func (r Request) CacheKey() string {
	site := strings.NewReplacer("/", "-", `\`, "-", " ", "-").Replace(r.Site)
	return fmt.Sprintf("%s_%s_%s_%s", site, r.Parameter, r.Kind, r.Window.Tag())
}
