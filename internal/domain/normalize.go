package domain

import "time"

// LocalPoint is one display row: a zone-free local wall-clock timestamp and
// the observed value. The timestamp's Location is UTC purely as a container;
// it must never be treated as an absolute instant.
type LocalPoint struct {
	LocalTime  time.Time `json:"local_time"`
	Value      *float64  `json:"value"`
	Qualifiers []string  `json:"qualifiers,omitempty"`
}

// LocalSeries is the display-only form of an instantaneous series: local
// civil wall-clock timestamps with the zone stripped. There is deliberately
// no conversion from LocalSeries back to Series — the naive form is one-way
// and never cached.
type LocalSeries struct {
	Site      string       `json:"site"`
	Parameter Parameter    `json:"parameter"`
	Zone      string       `json:"zone"`
	Points    []LocalPoint `json:"points"`
}

// ToUTC returns the series in canonical form with every instant in UTC.
// Cached and persisted series are always in this form.
func ToUTC(s Series) Series {
	points := make([]Observation, len(s.Points))
	for i, p := range s.Points {
		points[i] = p
		points[i].Instant = p.Instant.UTC()
	}
	s.Points = points
	return s
}

// ToLocalNaive converts an instantaneous series to local wall-clock time in
// loc and strips the zone. Instant ordering is preserved; during a DST
// fall-back the local column repeats one wall-clock hour, during spring-
// forward it skips one. The instant→wall mapping is total and deterministic.
//
// Daily series are rejected with ErrDailySeries: their instants are calendar
// dates, and shifting a date by a zone offset would relabel it.
func ToLocalNaive(s Series, loc *time.Location) (LocalSeries, error) {
	if s.Kind == KindDaily {
		return LocalSeries{}, ErrDailySeries
	}
	out := LocalSeries{
		Site:      s.Site,
		Parameter: s.Parameter,
		Zone:      loc.String(),
		Points:    make([]LocalPoint, len(s.Points)),
	}
	for i, p := range s.Points {
		out.Points[i] = LocalPoint{
			LocalTime:  stripZone(p.Instant.In(loc)),
			Value:      p.Value,
			Qualifiers: p.Qualifiers,
		}
	}
	return out, nil
}

// stripZone copies the wall-clock fields of t into a UTC-located time,
// discarding the offset. The result compares and formats as naive local time.
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
