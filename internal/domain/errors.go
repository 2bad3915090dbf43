package domain

import "errors"

// Error taxonomy for the fetch/cache path. Each sentinel implies a different
// operator remedy, so callers must be able to tell them apart with errors.Is.
var (
	// ErrRemoteUnavailable covers transport failures, timeouts, and
	// non-success HTTP statuses from the USGS service. Remedy: retry later.
	ErrRemoteUnavailable = errors.New("usgs service unavailable")

	// ErrMalformedResponse covers responses that do not match the expected
	// timeSeries envelope or contain unparseable values or timestamps.
	// Remedy: investigate an upstream schema change.
	ErrMalformedResponse = errors.New("unexpected usgs response")

	// ErrCacheCorrupt marks an on-disk cache artifact that failed to parse.
	// The store treats it as a miss and replaces it; surfaced only when the
	// replacement fetch also fails. Remedy: clear the cache.
	ErrCacheCorrupt = errors.New("cache entry corrupt")

	// ErrInvalidRequest wraps request-validation failures so transport
	// layers can distinguish a caller mistake from an internal fault.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDailySeries is returned when a daily series is passed through
	// timezone conversion. Daily instants are calendar dates, not moments;
	// shifting them by a zone offset would change the date.
	ErrDailySeries = errors.New("daily series carries no time of day")
)
