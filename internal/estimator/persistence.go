package estimator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Persistence extrapolates from the most recent observed conditions with
// exponentially decaying weights. It refuses targets past its horizon
// ceiling: beyond a few days, persistence is not a credible method and must
// not silently produce a number.
type Persistence struct {
	// Ceiling is the maximum horizon this method will estimate for.
	Ceiling time.Duration

	// Lookback bounds how far back recent conditions are sampled.
	Lookback time.Duration

	// DecayPerDay controls the exponential down-weighting of older days.
	DecayPerDay float64
}

// NewPersistence applies the conventional defaults: 72h ceiling, 7-day
// lookback, 0.2/day decay.
func NewPersistence() *Persistence {
	return &Persistence{
		Ceiling:     72 * time.Hour,
		Lookback:    7 * 24 * time.Hour,
		DecayPerDay: 0.2,
	}
}

func (p *Persistence) Method() domain.Method { return domain.MethodPersistence }

func (p *Persistence) Estimate(ctx context.Context, target time.Time, _ domain.Location, in Inputs) (domain.MethodEstimate, error) {
	if err := ctx.Err(); err != nil {
		return domain.MethodEstimate{}, fmt.Errorf("persistence: %w", domain.ErrUnavailable)
	}

	horizon := target.Sub(in.Issued)
	if horizon > p.Ceiling {
		return domain.MethodEstimate{}, fmt.Errorf("persistence beyond %s horizon: %w", p.Ceiling, domain.ErrUnavailable)
	}

	recent := in.Series.Since(in.Issued.Add(-p.Lookback))
	days := dailyTotals(recent)
	if len(days) == 0 {
		return domain.MethodEstimate{}, fmt.Errorf("persistence has no recent observations: %w", domain.ErrUnavailable)
	}

	// Weighted mean of recent daily totals, newer days weighted heavier.
	var weightSum, weighted float64
	weights := make([]float64, len(days))
	for i, d := range days {
		ageDays := in.Issued.Sub(d.date).Hours() / 24
		w := math.Exp(-p.DecayPerDay * ageDays)
		weights[i] = w
		weightSum += w
		weighted += w * d.mm
	}
	dailyMM := weighted / weightSum

	// Weighted spread around the persisted value.
	var varSum float64
	for i, d := range days {
		varSum += weights[i] * (d.mm - dailyMM) * (d.mm - dailyMM)
	}
	dailyStd := math.Sqrt(varSum / weightSum)

	point := dailyMM / 24
	spread := dailyStd / 24
	return domain.MethodEstimate{
		Method:           domain.MethodPersistence,
		Target:           target,
		PointMM:          point,
		ConfidenceLowMM:  point - spread,
		ConfidenceHighMM: point + spread,
	}.Clamp(), nil
}
