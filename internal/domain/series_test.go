package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries_SortsAndDeduplicates(t *testing.T) {
	base := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	v1, v2 := 10.0, 20.0

	s := NewSeries("09095500", ParamDischarge, KindInstantaneous, []Observation{
		{Instant: base.Add(30 * time.Minute), Value: &v1},
		{Instant: base, Value: &v1},
		{Instant: base.Add(30 * time.Minute), Value: &v2}, // duplicate instant, later wins
		{Instant: base.Add(15 * time.Minute)},
	})

	require.Len(t, s.Points, 3)
	assert.Equal(t, base, s.Points[0].Instant)
	assert.Equal(t, base.Add(15*time.Minute), s.Points[1].Instant)
	assert.Equal(t, base.Add(30*time.Minute), s.Points[2].Instant)
	assert.Equal(t, v2, *s.Points[2].Value)
}

func TestNewSeries_NormalizesToUTC(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)

	local := time.Date(2025, time.August, 1, 6, 0, 0, 0, denver)
	s := NewSeries("09095500", ParamDischarge, KindInstantaneous, []Observation{{Instant: local}})

	require.Len(t, s.Points, 1)
	assert.Equal(t, time.UTC, s.Points[0].Instant.Location())
	assert.True(t, s.Points[0].Instant.Equal(local))
}

func TestNewSeries_DoesNotMutateInput(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)

	base := time.Date(2025, time.August, 1, 6, 0, 0, 0, denver)
	input := []Observation{
		{Instant: base.Add(30 * time.Minute)},
		{Instant: base},
	}

	NewSeries("09095500", ParamDischarge, KindInstantaneous, input)

	assert.True(t, input[0].Instant.Equal(base.Add(30*time.Minute)), "caller slice must keep its order")
	assert.Equal(t, denver, input[0].Instant.Location(), "caller instants must keep their zone")
	assert.True(t, input[1].Instant.Equal(base))
}

func TestWindow_Tag(t *testing.T) {
	assert.Equal(t, "7d", LastDays(7).Tag())
	assert.Equal(t, "5y", LastYears(5).Tag())
}

func TestWindow_Bounds(t *testing.T) {
	now := time.Date(2025, time.August, 23, 12, 0, 0, 0, time.UTC)

	start, end := LastDays(7).Bounds(now)
	assert.Equal(t, now, end)
	assert.Equal(t, now.AddDate(0, 0, -7), start)

	start, end = LastYears(2).Bounds(now)
	assert.Equal(t, now, end)
	assert.Equal(t, now.AddDate(0, 0, -730), start)
}

func TestRequest_Validate(t *testing.T) {
	valid := Request{Site: "09095500", Parameter: ParamDischarge, Kind: KindInstantaneous, Window: LastDays(7)}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name string
		req  Request
	}{
		{"empty site", Request{Parameter: ParamDischarge, Kind: KindInstantaneous, Window: LastDays(7)}},
		{"empty parameter", Request{Site: "09095500", Kind: KindInstantaneous, Window: LastDays(7)}},
		{"iv with years", Request{Site: "09095500", Parameter: ParamDischarge, Kind: KindInstantaneous, Window: LastYears(5)}},
		{"dv with days", Request{Site: "09095500", Parameter: ParamDischarge, Kind: KindDaily, Window: LastDays(7)}},
		{"zero window", Request{Site: "09095500", Parameter: ParamDischarge, Kind: KindInstantaneous}},
		{"unknown kind", Request{Site: "09095500", Parameter: ParamDischarge, Kind: "hourly", Window: LastDays(7)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.req.Validate(), ErrInvalidRequest)
		})
	}
}

func TestRequest_CacheKey(t *testing.T) {
	iv := Request{Site: "09095500", Parameter: ParamDischarge, Kind: KindInstantaneous, Window: LastDays(7)}
	assert.Equal(t, "09095500_00060_iv_7d", iv.CacheKey())

	dv := Request{Site: "09095500", Parameter: ParamDischarge, Kind: KindDaily, Window: LastYears(5)}
	assert.Equal(t, "09095500_00060_dv_5y", dv.CacheKey())

	// Windows differing only in length produce distinct keys.
	other := iv
	other.Window = LastDays(14)
	assert.NotEqual(t, iv.CacheKey(), other.CacheKey())

	// Path separators in site IDs cannot escape the cache root.
	odd := iv
	odd.Site = "a/b\\c"
	assert.NotContains(t, odd.CacheKey(), "/")
	assert.NotContains(t, odd.CacheKey(), `\`)
}

func TestParseParameter(t *testing.T) {
	for _, in := range []string{"00060", "discharge", "discharge_cfs"} {
		p, err := ParseParameter(in)
		require.NoError(t, err, in)
		assert.Equal(t, ParamDischarge, p)
	}
	p, err := ParseParameter("stage")
	require.NoError(t, err)
	assert.Equal(t, ParamGageHeight, p)

	// Unknown numeric codes pass through.
	p, err = ParseParameter("00010")
	require.NoError(t, err)
	assert.Equal(t, Parameter("00010"), p)

	_, err = ParseParameter("")
	assert.Error(t, err)
	_, err = ParseParameter("bogus")
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("instantaneous")
	require.NoError(t, err)
	assert.Equal(t, KindInstantaneous, k)

	k, err = ParseKind("dv")
	require.NoError(t, err)
	assert.Equal(t, KindDaily, k)

	_, err = ParseKind("weekly")
	assert.Error(t, err)
}

func TestParameter_Label(t *testing.T) {
	assert.Equal(t, "discharge_cfs", ParamDischarge.Label())
	assert.Equal(t, "stage_ft", ParamGageHeight.Label())
	assert.Equal(t, "00010", Parameter("00010").Label())
}
