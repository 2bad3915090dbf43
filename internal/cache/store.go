// Package cache persists fetched observation series as columnar Parquet
// artifacts under a single storage root, one directory per request key.
//
// An entry directory holds series.parquet (the observations) and entry.json
// (key, window, fetched_at, row count). Entries are immutable once written:
// staleness is purely a function of key equality, a different window is a
// different key, and the only deletion path is explicit invalidation.
// Writes stage into a temporary directory in the same root and rename into
// place, so concurrent readers of the root never observe a half-written
// entry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/observability"
)

const (
	seriesFile = "series.parquet"
	metaFile   = "entry.json"
)

// FetchFunc produces a series on a cache miss. It is an alias so callers can
// pass any function or method value of this shape.
type FetchFunc = func(ctx context.Context, req domain.Request) (domain.Series, error)

// Entry is the persisted metadata for one cache key.
type Entry struct {
	Key       string           `json:"key"`
	Site      string           `json:"site"`
	Parameter domain.Parameter `json:"parameter"`
	Kind      domain.Kind      `json:"kind"`
	Window    domain.Window    `json:"window"`
	FetchedAt time.Time        `json:"fetched_at"`
	Rows      int              `json:"rows"`
}

// Store is a filesystem-backed series cache. Safe for use by independent
// processes sharing the same root; the atomic rename on write is the only
// coordination required.
type Store struct {
	root    string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Open creates the storage root if needed and returns a store over it.
func Open(root string, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &Store{root: root, logger: logger, metrics: metrics}, nil
}

// Root returns the storage root path.
func (s *Store) Root() string { return s.root }

// GetOrFetch returns the cached series for req's key, fetching and
// persisting it first on a miss. A corrupt on-disk entry counts as a miss
// and is replaced whole by the refetched series. Fetch failures propagate
// unchanged and leave the cache untouched.
func (s *Store) GetOrFetch(ctx context.Context, req domain.Request, fetch FetchFunc) (domain.Series, error) {
	if err := req.Validate(); err != nil {
		return domain.Series{}, err
	}
	key := req.CacheKey()
	dir := filepath.Join(s.root, key)

	series, err := s.readEntry(dir, req)
	switch {
	case err == nil:
		s.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return series, nil
	case errors.Is(err, fs.ErrNotExist):
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		// Unparseable artifact: replace it rather than fail the request.
		s.metrics.CacheLookups.WithLabelValues("corrupt").Inc()
		s.logger.Warn("cache entry corrupt, refetching", "key", key, "error", err)
	}

	fetched, err := fetch(ctx, req)
	if err != nil {
		return domain.Series{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Series{}, err
	}

	if err := s.writeEntry(key, req, fetched); err != nil {
		return domain.Series{}, err
	}
	s.metrics.CacheWrites.Inc()
	s.logger.Info("cache entry written", "key", key, "rows", len(fetched.Points))
	return fetched, nil
}

// Invalidate removes the entry for key. Removing a key that does not exist
// is not an error.
func (s *Store) Invalidate(key string) error {
	if key == "" || key != filepath.Base(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}
	dir := filepath.Join(s.root, key)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	s.metrics.CacheEvicted.Inc()
	s.logger.Info("cache entry invalidated", "key", key)
	return nil
}

// InvalidateAll removes every entry under the root. This is the cache-reset
// control surface used by operational tooling.
func (s *Store) InvalidateAll() error {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("list cache root: %w", err)
	}
	var removed int
	for _, d := range dirents {
		if err := os.RemoveAll(filepath.Join(s.root, d.Name())); err != nil {
			return fmt.Errorf("invalidate %s: %w", d.Name(), err)
		}
		removed++
	}
	s.metrics.CacheEvicted.Add(float64(removed))
	s.logger.Info("cache cleared", "entries", removed)
	return nil
}

// List returns the metadata of every readable entry, sorted by key.
// Unreadable entries are skipped; they will be replaced on next access.
func (s *Store) List() ([]Entry, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list cache root: %w", err)
	}
	var entries []Entry
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		meta, err := readMeta(filepath.Join(s.root, d.Name()))
		if err != nil {
			continue
		}
		entries = append(entries, meta)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (s *Store) readEntry(dir string, req domain.Request) (domain.Series, error) {
	meta, err := readMeta(dir)
	if err != nil {
		return domain.Series{}, err
	}
	if meta.Window != req.Window || meta.Kind != req.Kind {
		// Key collisions between differing windows cannot happen by
		// construction; a mismatch means the artifact was tampered with.
		return domain.Series{}, fmt.Errorf("%w: metadata does not match key", domain.ErrCacheCorrupt)
	}

	rows, err := ReadRows(filepath.Join(dir, seriesFile))
	if err != nil {
		return domain.Series{}, err
	}
	points := make([]domain.Observation, len(rows))
	for i, r := range rows {
		points[i] = domain.Observation{Instant: r.Instant, Value: r.Value, Qualifiers: r.Qualifiers}
	}
	return domain.NewSeries(req.Site, req.Parameter, req.Kind, points), nil
}

func readMeta(dir string) (Entry, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return Entry{}, err
	}
	var meta Entry
	if err := json.Unmarshal(data, &meta); err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, metaFile, err)
	}
	return meta, nil
}

// writeEntry stages the full entry in a temporary directory and renames it
// into place. The series is complete in memory before any byte reaches
// disk, so an aborted invocation leaves either the old entry or none.
func (s *Store) writeEntry(key string, req domain.Request, series domain.Series) error {
	tmp, err := os.MkdirTemp(s.root, "."+key+".tmp-")
	if err != nil {
		return fmt.Errorf("stage cache entry: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeSeriesFile(filepath.Join(tmp, seriesFile), series); err != nil {
		return fmt.Errorf("write %s: %w", seriesFile, err)
	}

	meta := Entry{
		Key:       key,
		Site:      req.Site,
		Parameter: req.Parameter,
		Kind:      req.Kind,
		Window:    req.Window,
		FetchedAt: domain.Now(),
		Rows:      len(series.Points),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", metaFile, err)
	}
	if err := os.WriteFile(filepath.Join(tmp, metaFile), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", metaFile, err)
	}

	dir := filepath.Join(s.root, key)
	// Replacement of an existing (corrupt) entry: clear the target first.
	// Rename over a non-empty directory fails on every platform we run on.
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("replace cache entry: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}
