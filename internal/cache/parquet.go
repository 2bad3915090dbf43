package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

// seriesRow is the Parquet schema of a cache artifact: one row per
// observation. Instants are stored as Unix microseconds UTC; value is an
// optional double so "no sample" survives the round trip.
type seriesRow struct {
	Instant    int64    `parquet:"instant"`
	Value      *float64 `parquet:"value,optional"`
	Qualifiers []string `parquet:"qualifiers,list"`
}

// Row is one decoded observation row from a cache artifact, exposed for
// read-only consumers that open artifacts directly by path.
type Row struct {
	Instant    time.Time
	Value      *float64
	Qualifiers []string
}

// ReadRows decodes a series.parquet file. Decode failures wrap
// domain.ErrCacheCorrupt so callers can treat them as a cache miss.
func ReadRows(path string) ([]Row, error) {
	raw, err := parquet.ReadFile[seriesRow](path)
	if err != nil {
		if isNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, path, err)
	}
	rows := make([]Row, len(raw))
	for i, r := range raw {
		rows[i] = Row{
			Instant:    time.UnixMicro(r.Instant).UTC(),
			Value:      r.Value,
			Qualifiers: r.Qualifiers,
		}
	}
	return rows, nil
}

func writeSeriesFile(path string, series domain.Series) error {
	rows := make([]seriesRow, len(series.Points))
	for i, p := range series.Points {
		rows[i] = seriesRow{
			Instant:    p.Instant.UTC().UnixMicro(),
			Value:      p.Value,
			Qualifiers: p.Qualifiers,
		}
	}
	return parquet.WriteFile(path, rows)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
