package cache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/observability"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return s
}

func testRequest() domain.Request {
	return domain.Request{
		Site:      "09095500",
		Parameter: domain.ParamDischarge,
		Kind:      domain.KindInstantaneous,
		Window:    domain.LastDays(7),
	}
}

// countingFetch returns the given series and counts invocations.
func countingFetch(series domain.Series, calls *int) FetchFunc {
	return func(context.Context, domain.Request) (domain.Series, error) {
		*calls++
		return series, nil
	}
}

func sampleSeries(n int) domain.Series {
	base := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.Observation, n)
	for i := range points {
		v := 100.0 + float64(i)
		points[i] = domain.Observation{
			Instant:    base.Add(time.Duration(i) * 15 * time.Minute),
			Value:      &v,
			Qualifiers: []string{"P"},
		}
	}
	return domain.NewSeries("09095500", domain.ParamDischarge, domain.KindInstantaneous, points)
}

func TestGetOrFetch_IdempotentCaching(t *testing.T) {
	store := testStore(t)
	req := testRequest()

	calls := 0
	fetch := countingFetch(sampleSeries(8), &calls)

	first, err := store.GetOrFetch(context.Background(), req, fetch)
	require.NoError(t, err)
	second, err := store.GetOrFetch(context.Background(), req, fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second call must be served from cache")
	assert.Equal(t, first, second)
	require.Len(t, second.Points, 8)
	assert.Equal(t, []string{"P"}, second.Points[0].Qualifiers)
}

func TestGetOrFetch_KeyDiscrimination(t *testing.T) {
	store := testStore(t)

	weekReq := testRequest()
	fortnightReq := testRequest()
	fortnightReq.Window = domain.LastDays(14)

	calls := 0
	_, err := store.GetOrFetch(context.Background(), weekReq, countingFetch(sampleSeries(4), &calls))
	require.NoError(t, err)
	_, err = store.GetOrFetch(context.Background(), fortnightReq, countingFetch(sampleSeries(9), &calls))
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "different windows are different keys")

	// Both entries exist side by side; neither overwrote the other.
	week, err := store.GetOrFetch(context.Background(), weekReq, countingFetch(domain.Series{}, &calls))
	require.NoError(t, err)
	fortnight, err := store.GetOrFetch(context.Background(), fortnightReq, countingFetch(domain.Series{}, &calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, week.Points, 4)
	assert.Len(t, fortnight.Points, 9)
}

func TestGetOrFetch_EmptySeriesPersistsAndReserves(t *testing.T) {
	store := testStore(t)
	req := testRequest()

	calls := 0
	empty := domain.NewSeries(req.Site, req.Parameter, req.Kind, nil)

	first, err := store.GetOrFetch(context.Background(), req, countingFetch(empty, &calls))
	require.NoError(t, err)
	assert.True(t, first.Empty())

	second, err := store.GetOrFetch(context.Background(), req, countingFetch(empty, &calls))
	require.NoError(t, err)
	assert.True(t, second.Empty())
	assert.Equal(t, 1, calls, "empty result is a valid cache entry")
}

func TestGetOrFetch_MissingValuesSurviveRoundTrip(t *testing.T) {
	store := testStore(t)
	req := testRequest()

	series := sampleSeries(5)
	series.Points[2].Value = nil

	calls := 0
	_, err := store.GetOrFetch(context.Background(), req, countingFetch(series, &calls))
	require.NoError(t, err)

	cached, err := store.GetOrFetch(context.Background(), req, countingFetch(domain.Series{}, &calls))
	require.NoError(t, err)
	require.Len(t, cached.Points, 5)
	assert.Nil(t, cached.Points[2].Value)
	assert.NotNil(t, cached.Points[1].Value)
	assert.Equal(t, 1, calls)
}

func TestGetOrFetch_FetchFailureWritesNothing(t *testing.T) {
	store := testStore(t)
	req := testRequest()

	wantErr := domain.ErrRemoteUnavailable
	_, err := store.GetOrFetch(context.Background(), req, func(context.Context, domain.Request) (domain.Series, error) {
		return domain.Series{}, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	dirents, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Empty(t, dirents, "failed fetch must not leave a partial entry")
}

func TestGetOrFetch_CorruptEntryRefetchedAndReplaced(t *testing.T) {
	store := testStore(t)
	req := testRequest()

	calls := 0
	_, err := store.GetOrFetch(context.Background(), req, countingFetch(sampleSeries(3), &calls))
	require.NoError(t, err)

	// Truncate the artifact in place.
	artifact := filepath.Join(store.Root(), req.CacheKey(), seriesFile)
	require.NoError(t, os.WriteFile(artifact, []byte("not parquet"), 0o644))

	replaced, err := store.GetOrFetch(context.Background(), req, countingFetch(sampleSeries(6), &calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "corrupt entry must trigger a refetch")
	assert.Len(t, replaced.Points, 6)

	// The replacement is whole, never merged.
	again, err := store.GetOrFetch(context.Background(), req, countingFetch(domain.Series{}, &calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, again.Points, 6)
}

func TestInvalidate(t *testing.T) {
	store := testStore(t)
	req := testRequest()

	calls := 0
	_, err := store.GetOrFetch(context.Background(), req, countingFetch(sampleSeries(3), &calls))
	require.NoError(t, err)

	require.NoError(t, store.Invalidate(req.CacheKey()))

	_, err = store.GetOrFetch(context.Background(), req, countingFetch(sampleSeries(3), &calls))
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "invalidated key must refetch")

	// Unknown keys are a no-op; traversal attempts are rejected.
	assert.NoError(t, store.Invalidate("no_such_key"))
	assert.Error(t, store.Invalidate("../escape"))
	assert.Error(t, store.Invalidate(""))
}

func TestInvalidateAll(t *testing.T) {
	store := testStore(t)

	calls := 0
	reqA := testRequest()
	reqB := testRequest()
	reqB.Window = domain.LastDays(30)
	_, err := store.GetOrFetch(context.Background(), reqA, countingFetch(sampleSeries(3), &calls))
	require.NoError(t, err)
	_, err = store.GetOrFetch(context.Background(), reqB, countingFetch(sampleSeries(3), &calls))
	require.NoError(t, err)

	require.NoError(t, store.InvalidateAll())

	entries, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestList_ReportsMetadata(t *testing.T) {
	store := testStore(t)
	frozen := time.Date(2025, time.August, 23, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	defer domain.SetClock(nil)

	req := testRequest()
	calls := 0
	_, err := store.GetOrFetch(context.Background(), req, countingFetch(sampleSeries(5), &calls))
	require.NoError(t, err)

	entries, err := store.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "09095500_00060_iv_7d", e.Key)
	assert.Equal(t, "09095500", e.Site)
	assert.Equal(t, domain.ParamDischarge, e.Parameter)
	assert.Equal(t, domain.KindInstantaneous, e.Kind)
	assert.Equal(t, domain.LastDays(7), e.Window)
	assert.True(t, e.FetchedAt.Equal(frozen))
	assert.Equal(t, 5, e.Rows)
}

func TestGetOrFetch_RejectsInvalidRequest(t *testing.T) {
	store := testStore(t)
	req := testRequest()
	req.Site = ""

	calls := 0
	_, err := store.GetOrFetch(context.Background(), req, countingFetch(domain.Series{}, &calls))
	require.Error(t, err)
	assert.Zero(t, calls)
}
