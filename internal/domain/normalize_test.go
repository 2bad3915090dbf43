package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoadDenver(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)
	return loc
}

func TestToLocalNaive_RoundTripWithKnownOffset(t *testing.T) {
	loc := mustLoadDenver(t)

	// Mid-winter: Denver is a fixed UTC-7, no DST transition in the window.
	instants := []time.Time{
		time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 15, 0, 15, 0, 0, time.UTC),
		time.Date(2025, time.January, 15, 0, 30, 0, 0, time.UTC),
	}
	points := make([]Observation, len(instants))
	for i, ts := range instants {
		v := float64(i)
		points[i] = Observation{Instant: ts, Value: &v}
	}
	s := NewSeries("09095500", ParamDischarge, KindInstantaneous, points)

	local, err := ToLocalNaive(s, loc)
	require.NoError(t, err)
	require.Len(t, local.Points, 3)
	assert.Equal(t, "America/Denver", local.Zone)

	// Adding back the known -7h offset recovers the original instants.
	for i, lp := range local.Points {
		recovered := lp.LocalTime.Add(7 * time.Hour)
		assert.True(t, recovered.Equal(instants[i]), "point %d", i)
	}
}

func TestToLocalNaive_StripsZone(t *testing.T) {
	loc := mustLoadDenver(t)
	s := NewSeries("09095500", ParamDischarge, KindInstantaneous, []Observation{
		{Instant: time.Date(2025, time.June, 1, 18, 0, 0, 0, time.UTC)},
	})

	local, err := ToLocalNaive(s, loc)
	require.NoError(t, err)
	// June is MDT (UTC-6): 18:00Z is noon wall clock, carried as a naive value.
	assert.Equal(t, 12, local.Points[0].LocalTime.Hour())
	assert.Equal(t, time.UTC, local.Points[0].LocalTime.Location())
}

func TestToLocalNaive_RejectsDailySeries(t *testing.T) {
	loc := mustLoadDenver(t)
	s := NewSeries("09095500", ParamDischarge, KindDaily, []Observation{
		{Instant: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)},
	})

	_, err := ToLocalNaive(s, loc)
	require.ErrorIs(t, err, ErrDailySeries)
}

func TestToLocalNaive_DSTFallBackRepeatsWallHour(t *testing.T) {
	loc := mustLoadDenver(t)

	// 2025-11-02: clocks fall back at 02:00 MDT. 07:30Z is 01:30 MDT,
	// 08:30Z is 01:30 MST — distinct instants, identical wall clocks.
	first := time.Date(2025, time.November, 2, 7, 30, 0, 0, time.UTC)
	second := time.Date(2025, time.November, 2, 8, 30, 0, 0, time.UTC)
	s := NewSeries("09095500", ParamDischarge, KindInstantaneous, []Observation{
		{Instant: first}, {Instant: second},
	})

	local, err := ToLocalNaive(s, loc)
	require.NoError(t, err)
	require.Len(t, local.Points, 2)
	assert.Equal(t, local.Points[0].LocalTime, local.Points[1].LocalTime)
}

func TestToUTC_IsCanonical(t *testing.T) {
	loc := mustLoadDenver(t)
	s := Series{
		Site:      "09095500",
		Parameter: ParamDischarge,
		Kind:      KindInstantaneous,
		Points: []Observation{
			{Instant: time.Date(2025, time.June, 1, 12, 0, 0, 0, loc)},
		},
	}

	out := ToUTC(s)
	assert.Equal(t, time.UTC, out.Points[0].Instant.Location())
	assert.True(t, out.Points[0].Instant.Equal(s.Points[0].Instant))
	// Input series left untouched.
	assert.Equal(t, loc, s.Points[0].Instant.Location())
}
