// Package domain models USGS Water Services time-series data and the pure
// transforms the pipeline applies to it.
//
// # Data Source
//
// Observations come from the USGS Water Services API
// (https://waterservices.usgs.gov/), two endpoints:
//
//	nwis/iv — Instantaneous Values, typically one sample every 15 minutes.
//	nwis/dv — Daily Values, one aggregate per civil day (statCd 00003 = mean).
//
// Parameter codes follow the USGS parameter catalog:
//
//	00060 — discharge, cubic feet per second ("discharge_cfs")
//	00065 — gage height, feet ("stage_ft")
//
// # Time Conventions
//
// IV timestamps arrive as ISO-8601 with the site's local offset, e.g.
// "2025-08-23T12:00:00.000-06:00". They are converted to UTC at the parse
// boundary; every Series instant is absolute UTC and that is the only form
// ever cached. DV timestamps are calendar dates with no time of day or zone;
// they are encoded as UTC midnight and act as a label, which is why
// [ToLocalNaive] rejects daily series with [ErrDailySeries].
//
// Display conversion is strictly one-way: UTC instant → local wall clock
// (America/Denver by default) → zone stripped. The naive form has no path
// back to an instant, so timezone-aware/naive mixing cannot occur.
//
// # Missing Values
//
// The service can report an instant with no usable number: an empty value
// string, or the variable's declared noDataValue (commonly -999999).
// Observations keep the instant with a nil Value so gap accounting and the
// regular grid can distinguish "no sample" from "sample value zero".
//
// Qualifier codes ride along unchanged; "P" marks provisional data, "A"
// approved, "e" estimated.
//
// # Cadence, Gaps, and Anomalies
//
// [ExpectedInterval] infers the sampling cadence as the modal spacing so a
// single outage cannot bias it. [FindGaps] reports runs of missing samples,
// [ToRegularGrid] reindexes onto a uniform grid with explicit missing slots,
// and [DeriveFeatures] computes rolling z-scores over the grid. Statistical
// edge cases (zero variance, underpopulated windows) degrade to sentinel
// behavior and never error.
package domain
