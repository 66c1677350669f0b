// Package estimator implements the four forecasting strategies behind a
// common Estimate contract: persistence, analog matching, climatology, and a
// pluggable trained regressor. Each strategy is independently testable; the
// blender iterates over whichever subset produced an estimate.
package estimator

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Inputs carries the read-only request data every method draws on.
type Inputs struct {
	Series domain.ObservationSeries

	// Normals holds the precomputed climate normals for the location,
	// both day-of-year and month-of-year buckets merged into one map.
	Normals map[domain.Period]domain.ClimateNormal

	// Issued is the forecast issue time; horizon = target minus Issued.
	Issued time.Time
}

// Estimator produces a point-plus-spread precipitation estimate for one
// target hour. Implementations signal ErrUnavailable (or ErrModelUnavailable)
// when they cannot credibly estimate, never a fabricated number.
type Estimator interface {
	Method() domain.Method
	Estimate(ctx context.Context, target time.Time, loc domain.Location, in Inputs) (domain.MethodEstimate, error)
}

// dailyTotal is one civil day's accumulated precipitation.
type dailyTotal struct {
	date time.Time
	mm   float64
}

// dailyTotals collapses a series into ordered per-day precipitation totals.
func dailyTotals(series domain.ObservationSeries) []dailyTotal {
	byDay := make(map[time.Time]float64)
	for _, s := range series {
		day := s.Time.UTC().Truncate(24 * time.Hour)
		byDay[day] += s.PrecipitationMM
	}
	out := make([]dailyTotal, 0, len(byDay))
	for day, mm := range byDay {
		out = append(out, dailyTotal{date: day, mm: mm})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].date.Before(out[j].date) })
	return out
}

// yearDayDistance is the circular distance between two days of year.
func yearDayDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wrapped := 365 - d; wrapped < d {
		return wrapped
	}
	return d
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
