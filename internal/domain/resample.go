package domain

import (
	"math"
	"sort"
	"time"
)

// DefaultGapTolerance is the multiple of the expected interval beyond which
// a spacing between consecutive samples counts as a gap. 1.5 absorbs USGS
// timestamp jitter without hiding a single dropped sample.
const DefaultGapTolerance = 1.5

// Gap is one run of missing samples between two recorded instants.
type Gap struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Missing int       `json:"missing"`
}

// GapReport summarizes where a series deviates from its expected cadence.
type GapReport struct {
	ExpectedInterval time.Duration `json:"expected_interval_ns"`
	Gaps             []Gap         `json:"gaps"`
}

// ExpectedInterval infers the sampling cadence as the modal spacing between
// consecutive instants. The mode, not the mean: a single multi-hour outage in
// a 15-minute series must not bias the cadence. Ties resolve to the shorter
// interval. Returns false when the series has fewer than two points.
func ExpectedInterval(s Series) (time.Duration, bool) {
	if len(s.Points) < 2 {
		return 0, false
	}
	counts := make(map[time.Duration]int)
	for i := 1; i < len(s.Points); i++ {
		d := s.Points[i].Instant.Sub(s.Points[i-1].Instant)
		if d > 0 {
			counts[d]++
		}
	}
	var mode time.Duration
	best := 0
	for d, n := range counts {
		if n > best || (n == best && (mode == 0 || d < mode)) {
			mode, best = d, n
		}
	}
	if mode == 0 {
		return 0, false
	}
	return mode, true
}

// FindGaps walks consecutive instant pairs and reports runs whose spacing
// exceeds tolerance×interval. Consecutive out-of-tolerance pairs merge into
// one run; the run closes at the next in-tolerance pair. Missing counts are
// round(spacing/interval)−1 summed over the run.
func FindGaps(s Series, interval time.Duration, tolerance float64) GapReport {
	report := GapReport{ExpectedInterval: interval}
	if interval <= 0 || len(s.Points) < 2 {
		return report
	}
	limit := time.Duration(float64(interval) * tolerance)

	var open *Gap
	for i := 1; i < len(s.Points); i++ {
		prev, cur := s.Points[i-1].Instant, s.Points[i].Instant
		spacing := cur.Sub(prev)
		if spacing <= limit {
			if open != nil {
				report.Gaps = append(report.Gaps, *open)
				open = nil
			}
			continue
		}
		missing := int(math.Round(float64(spacing)/float64(interval))) - 1
		if missing < 1 {
			missing = 1
		}
		if open == nil {
			open = &Gap{Start: prev, End: cur, Missing: missing}
		} else {
			open.End = cur
			open.Missing += missing
		}
	}
	if open != nil {
		report.Gaps = append(report.Gaps, *open)
	}
	return report
}

// ToRegularGrid reindexes the series onto instants spaced exactly interval
// apart from the first to the last instant inclusive. Observations snap to
// the nearest slot; slots with no observation carry an explicit nil value so
// downstream consumers can tell "no sample" from "sample value zero". Two
// observations snapping to the same slot keep the later one.
func ToRegularGrid(s Series, interval time.Duration) Series {
	out := Series{Site: s.Site, Parameter: s.Parameter, Kind: s.Kind}
	if interval <= 0 || len(s.Points) == 0 {
		out.Points = nil
		return out
	}
	first := s.Points[0].Instant
	last := s.Points[len(s.Points)-1].Instant
	// Count slots by the same rounding used to place observations, so a
	// trailing sample with negative jitter still lands on the grid.
	slots := int(math.Round(float64(last.Sub(first))/float64(interval))) + 1

	out.Points = make([]Observation, slots)
	for i := range out.Points {
		out.Points[i] = Observation{Instant: first.Add(time.Duration(i) * interval)}
	}
	for _, p := range s.Points {
		idx := int(math.Round(float64(p.Instant.Sub(first)) / float64(interval)))
		if idx < 0 || idx >= slots {
			continue
		}
		out.Points[idx].Value = p.Value
		out.Points[idx].Qualifiers = p.Qualifiers
	}
	return out
}

// Summary holds basic cadence diagnostics for a series.
type Summary struct {
	Count      int           `json:"count"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	MedianStep time.Duration `json:"median_step_ns"`
	MaxGap     time.Duration `json:"max_gap_ns"`
	// PctMissing is the fraction of samples missing versus the expected
	// cadence over the covered span, in [0, 1].
	PctMissing float64 `json:"pct_missing"`
}

// Summarize computes sample count, span, median and maximum spacing, and the
// rough fraction of samples missing versus the expected interval.
func Summarize(s Series, interval time.Duration) Summary {
	sum := Summary{Count: len(s.Points)}
	if len(s.Points) == 0 {
		return sum
	}
	sum.Start = s.Points[0].Instant
	sum.End = s.Points[len(s.Points)-1].Instant

	if len(s.Points) < 2 {
		return sum
	}
	steps := make([]time.Duration, 0, len(s.Points)-1)
	for i := 1; i < len(s.Points); i++ {
		d := s.Points[i].Instant.Sub(s.Points[i-1].Instant)
		steps = append(steps, d)
		if d > sum.MaxGap {
			sum.MaxGap = d
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	sum.MedianStep = steps[len(steps)/2]

	if interval > 0 {
		ideal := float64(sum.End.Sub(sum.Start))/float64(interval) + 1
		if ideal > 0 {
			pct := 1 - float64(len(s.Points))/ideal
			if pct < 0 {
				pct = 0
			}
			sum.PctMissing = pct
		}
	}
	return sum
}

// DailyStat is one civil day's aggregate of an instantaneous series.
type DailyStat struct {
	Date  time.Time `json:"date"`
	Mean  *float64  `json:"mean"`
	Max   *float64  `json:"max"`
	Min   *float64  `json:"min"`
	Count int       `json:"count"`
}

// DailyStats aggregates an instantaneous series into per-UTC-day mean, max,
// and min over the non-missing values. Days with instants but no usable
// values appear with nil aggregates so callers see the day existed.
func DailyStats(s Series) []DailyStat {
	if len(s.Points) == 0 {
		return nil
	}
	type acc struct {
		sum, max, min float64
		n             int
	}
	byDay := make(map[time.Time]*acc)
	var order []time.Time
	for _, p := range s.Points {
		day := p.Instant.UTC().Truncate(24 * time.Hour)
		a, ok := byDay[day]
		if !ok {
			a = &acc{}
			byDay[day] = a
			order = append(order, day)
		}
		if p.Value == nil {
			continue
		}
		v := *p.Value
		if a.n == 0 || v > a.max {
			a.max = v
		}
		if a.n == 0 || v < a.min {
			a.min = v
		}
		a.sum += v
		a.n++
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	out := make([]DailyStat, 0, len(order))
	for _, day := range order {
		a := byDay[day]
		stat := DailyStat{Date: day, Count: a.n}
		if a.n > 0 {
			mean := a.sum / float64(a.n)
			mx, mn := a.max, a.min
			stat.Mean, stat.Max, stat.Min = &mean, &mx, &mn
		}
		out = append(out, stat)
	}
	return out
}
