package domain

import (
	"math"
	"time"
)

// Feature engine defaults. The window and minimum-population values follow
// the rolling z-score configuration the series were originally tuned with;
// the threshold is an operational default, not a fitted constant.
const (
	DefaultFeatureWindow = 30
	DefaultMinPeriods    = 7
	DefaultZThreshold    = 3.0
	DefaultLagSteps      = 3
)

// FeatureParams configures rolling-window feature derivation.
type FeatureParams struct {
	// WindowSize is the number of prior samples the rolling statistics
	// cover. Rows with index < WindowSize have an undefined score.
	WindowSize int
	// MinPeriods is the minimum count of non-missing values the window must
	// hold for the score to be defined.
	MinPeriods int
	// ZThreshold flags rows whose |score| exceeds it.
	ZThreshold float64
	// LagSteps produces value lags 1..LagSteps for downstream consumers.
	LagSteps int
}

// DefaultFeatureParams returns the standard configuration.
func DefaultFeatureParams() FeatureParams {
	return FeatureParams{
		WindowSize: DefaultFeatureWindow,
		MinPeriods: DefaultMinPeriods,
		ZThreshold: DefaultZThreshold,
		LagSteps:   DefaultLagSteps,
	}
}

// FeatureRow is the derived output for one grid instant. Score is nil when
// undefined: the row is earlier than one full window, the window holds fewer
// than MinPeriods non-missing values, or the row's own value is missing.
// Lag features carry no anomaly semantics.
type FeatureRow struct {
	Instant     time.Time  `json:"instant"`
	Value       *float64   `json:"value"`
	Lags        []*float64 `json:"lags,omitempty"`
	RollingMean *float64   `json:"rolling_mean"`
	RollingStd  *float64   `json:"rolling_std"`
	Score       *float64   `json:"score"`
	IsAnomaly   bool       `json:"is_anomaly"`
}

// DeriveFeatures computes lag and rolling-window features with a z-style
// anomaly score per row. The rolling mean and sample standard deviation
// cover the WindowSize samples strictly before each row, restricted to
// non-missing values. Pure function: same series and params, same output.
//
// Zero-variance windows never divide by zero: a value equal to the window
// mean scores 0, a differing value scores ±Inf and is flagged.
func DeriveFeatures(s Series, p FeatureParams) []FeatureRow {
	rows := make([]FeatureRow, len(s.Points))
	for i, obs := range s.Points {
		row := FeatureRow{Instant: obs.Instant, Value: obs.Value}

		if p.LagSteps > 0 {
			row.Lags = make([]*float64, p.LagSteps)
			for k := 1; k <= p.LagSteps; k++ {
				if i-k >= 0 {
					row.Lags[k-1] = s.Points[i-k].Value
				}
			}
		}

		if i >= p.WindowSize {
			mean, std, n := windowStats(s.Points[i-p.WindowSize : i])
			if n >= p.MinPeriods && n >= 2 {
				m, sd := mean, std
				row.RollingMean, row.RollingStd = &m, &sd
				row.Score = scoreAgainst(obs.Value, mean, std)
			}
		}

		if row.Score != nil && math.Abs(*row.Score) > p.ZThreshold {
			row.IsAnomaly = true
		}
		rows[i] = row
	}
	return rows
}

// windowStats returns the mean and sample standard deviation of the
// non-missing values in the window, plus how many there were.
func windowStats(window []Observation) (mean, std float64, n int) {
	var sum float64
	for _, o := range window {
		if o.Value == nil {
			continue
		}
		sum += *o.Value
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0, n
	}
	var ss float64
	for _, o := range window {
		if o.Value == nil {
			continue
		}
		d := *o.Value - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(n-1))
	return mean, std, n
}

// scoreAgainst computes (value−mean)/std with the zero-variance convention.
// Missing values have no score.
func scoreAgainst(value *float64, mean, std float64) *float64 {
	if value == nil {
		return nil
	}
	var score float64
	switch {
	case std > 0:
		score = (*value - mean) / std
	case *value == mean:
		score = 0
	default:
		score = math.Inf(1)
		if *value < mean {
			score = math.Inf(-1)
		}
	}
	return &score
}

// AnomalyEvent is the record published for each flagged feature row.
type AnomalyEvent struct {
	Site      string    `json:"site"`
	Parameter Parameter `json:"parameter"`
	Kind      Kind      `json:"kind"`
	Instant   time.Time `json:"instant"`
	Value     float64   `json:"value"`
	Score     float64   `json:"score"`
	Threshold float64   `json:"threshold"`
}

// Anomalies extracts the flagged rows of a feature sequence as events.
func Anomalies(site string, param Parameter, kind Kind, rows []FeatureRow, threshold float64) []AnomalyEvent {
	var events []AnomalyEvent
	for _, row := range rows {
		if !row.IsAnomaly || row.Value == nil || row.Score == nil {
			continue
		}
		events = append(events, AnomalyEvent{
			Site:      site,
			Parameter: param,
			Kind:      kind,
			Instant:   row.Instant,
			Value:     *row.Value,
			Score:     *row.Score,
			Threshold: threshold,
		})
	}
	return events
}
