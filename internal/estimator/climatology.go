package estimator

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Climatology returns the climate normal for the target's calendar period as
// the estimate. Always available once normals exist; it is the fallback when
// every other method is unavailable.
type Climatology struct{}

func NewClimatology() *Climatology { return &Climatology{} }

func (c *Climatology) Method() domain.Method { return domain.MethodClimatology }

func (c *Climatology) Estimate(ctx context.Context, target time.Time, _ domain.Location, in Inputs) (domain.MethodEstimate, error) {
	if err := ctx.Err(); err != nil {
		return domain.MethodEstimate{}, fmt.Errorf("climatology: %w", domain.ErrUnavailable)
	}

	normal, hours, ok := normalForTarget(in.Normals, target)
	if !ok {
		return domain.MethodEstimate{}, fmt.Errorf("climatology for %s: %w", target.Format("2006-01-02"), domain.ErrNoNormalAvailable)
	}

	point := normal.MeanMM / hours
	spread := normal.StdDevMM / hours
	return domain.MethodEstimate{
		Method:           domain.MethodClimatology,
		Target:           target,
		PointMM:          point,
		ConfidenceLowMM:  point - spread,
		ConfidenceHighMM: point + spread,
	}.Clamp(), nil
}

// normalForTarget resolves the finest normal covering the target and the
// number of hours its mean spans, for scaling period totals down to one hour.
// Day-of-year normals hold daily totals; month normals hold monthly totals.
func normalForTarget(normals map[domain.Period]domain.ClimateNormal, target time.Time) (domain.ClimateNormal, float64, bool) {
	if n, ok := normals[domain.DayOfYearPeriod(target)]; ok {
		return n, 24, true
	}
	if n, ok := normals[domain.MonthPeriod(target)]; ok {
		return n, float64(daysInMonth(target)) * 24, true
	}
	return domain.ClimateNormal{}, 0, false
}

func daysInMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}
