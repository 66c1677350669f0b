package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Per-point and per-window failures are recovered
// locally by the orchestrator; only a total absence of any usable method
// across the whole requested range escalates to the boundary.
var (
	// ErrInsufficientData signals too few historical samples to compute a
	// normal or run a history-backed method. Usually wrapped by
	// InsufficientDataError naming the offending bucket.
	ErrInsufficientData = errors.New("insufficient historical data")

	// ErrUnavailable signals that a method cannot credibly estimate this
	// target (e.g. persistence past its horizon ceiling). Non-fatal: the
	// blender renormalizes over the remaining methods.
	ErrUnavailable = errors.New("method unavailable")

	// ErrModelUnavailable signals that the trained regressor's model is not
	// loaded or not reachable. Non-fatal, handled like ErrUnavailable.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrNoForecastAvailable signals that every method failed for a target
	// time. Fatal for that point only; the surrounding sequence may still
	// contain successful points.
	ErrNoForecastAvailable = errors.New("no forecast available")

	// ErrEmptyWindow signals aggregation over zero points.
	ErrEmptyWindow = errors.New("empty aggregation window")

	// ErrNoNormalAvailable signals that tercile classification was skipped
	// because no climate normal exists for the period. The summary remains
	// valid, just unlabeled.
	ErrNoNormalAvailable = errors.New("no climate normal available")
)

// InsufficientDataError identifies the calendar bucket that fell short of the
// configured minimum sample count.
type InsufficientDataError struct {
	Period  Period
	Samples int
	Minimum int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient historical data for %s: %d samples, need %d",
		e.Period, e.Samples, e.Minimum)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }
