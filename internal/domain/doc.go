// Package domain models the entities of the precipitation forecast engine:
// locations, historical observation series, climate normals, per-method
// estimates, blended forecast points, and aggregated summaries.
//
// # Climate Normals
//
// A climate normal is the long-run statistical baseline for a calendar period
// at a location: mean precipitation, standard deviation, and the empirical
// 33rd/67th percentile tercile boundaries. Normals are derived from a fixed
// reference window of historical years (configurable, default 10) and are
// pure functions of the observation series: recomputing on unchanged input
// yields identical values.
//
// Calendar periods come in two granularities:
//
//	month-of-year: 12 buckets, always available with modest history.
//	day-of-year:   366 buckets smoothed over a ±15 day window, used when the
//	               series is deep enough; callers fall back to the month
//	               bucket when a day bucket has too few samples.
//
// # Forecast Methods
//
// Four strategies estimate precipitation for a target time:
//
//	persistence:        recent conditions continue; credible only within a
//	                    short horizon ceiling (default 72h).
//	analog:             the K most similar historical periods, matched by
//	                    calendar proximity and recent-trend similarity.
//	climatology:        the climate normal itself; the universal fallback.
//	trained_regressor:  a pluggable statistical model; may be unavailable.
//
// The blender combines whichever subset is available with fixed per-horizon
// weights, renormalized so applied weights always sum to 1.
//
// # Tercile Classification
//
// An aggregated total is labeled against the matching period's tercile
// boundaries: at or below the 33rd percentile is below_normal, at or above
// the 67th is above_normal, otherwise near_normal. A missing normal leaves
// the summary unlabeled rather than defaulting to near_normal.
//
// # Error Semantics
//
// All failure kinds are explicit sentinels (see errors.go). Per-point and
// per-window failures stay local: a forecast sequence may contain gaps with
// explicit markers, and only the total absence of any usable method across
// the requested range escalates to the request boundary.
package domain
