// Package blend combines per-method estimates into one calibrated forecast
// point using horizon-dependent weights.
package blend

import (
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Horizon bucket boundaries.
const (
	NearCeiling = 72 * time.Hour       // persistence/regressor territory
	MidCeiling  = 30 * 24 * time.Hour  // analog/regressor territory
	MaxHorizon  = 183 * 24 * time.Hour // six-month outlook limit
)

const (
	// voteShare and amountShare split the probability between the
	// measurable-rain vote across methods and the blended amount itself.
	voteShare   = 0.6
	amountShare = 0.4

	// wetDayShare mixes in the climatological wet-day fraction when known,
	// anchoring the probability to how often this period historically rains.
	wetDayShare = 0.25

	// amountSaturationMM is the hourly amount at which the amount-derived
	// probability signal reaches one half.
	amountSaturationMM = 0.3

	// disagreementInflation widens the blended interval in proportion to
	// the spread across the methods' point estimates.
	disagreementInflation = 0.5
)

// Weights maps methods to their share of the blend. Entries must sum to 1;
// methods absent from the map do not contribute at that horizon.
type Weights map[domain.Method]float64

// Table fixes the documented per-horizon-bucket weighting policy.
type Table struct {
	Near Weights // horizon <= 72h
	Mid  Weights // 72h < horizon <= 30d
	Long Weights // 30d < horizon <= 6 months
}

// DefaultTable favors persistence and the regressor near-term, analog and
// the regressor mid-term, and climatology almost exclusively long-term.
func DefaultTable() Table {
	return Table{
		Near: Weights{
			domain.MethodPersistence: 0.35,
			domain.MethodRegressor:   0.35,
			domain.MethodAnalog:      0.20,
			domain.MethodClimatology: 0.10,
		},
		Mid: Weights{
			domain.MethodAnalog:      0.40,
			domain.MethodRegressor:   0.35,
			domain.MethodClimatology: 0.25,
		},
		Long: Weights{
			domain.MethodClimatology: 0.85,
			domain.MethodAnalog:      0.15,
		},
	}
}

// Blender applies the weighting policy and the uncertainty model.
type Blender struct {
	table           Table
	rainThresholdMM float64
}

// New creates a Blender. rainThresholdMM is the measurable-rain cutoff used
// in probability voting.
func New(table Table, rainThresholdMM float64) *Blender {
	return &Blender{table: table, rainThresholdMM: rainThresholdMM}
}

// BucketName labels a horizon for logging and metrics.
func BucketName(horizon time.Duration) string {
	switch {
	case horizon <= NearCeiling:
		return "near"
	case horizon <= MidCeiling:
		return "mid"
	default:
		return "long"
	}
}

func (b *Blender) weightsFor(horizon time.Duration) Weights {
	switch {
	case horizon <= NearCeiling:
		return b.table.Near
	case horizon <= MidCeiling:
		return b.table.Mid
	default:
		return b.table.Long
	}
}

// Blend combines the available estimates for one target hour.
// wetDayFraction is the climatological share of wet days for the target's
// period, or a negative value when no normal is available.
//
// Weights of unavailable methods are renormalized over the remainder so the
// applied weights always sum to 1; a single available method passes through
// with weight 1. No available method at all fails with
// ErrNoForecastAvailable, never a fabricated zero.
func (b *Blender) Blend(target, issued time.Time, estimates []domain.MethodEstimate, wetDayFraction float64) (domain.BlendedForecastPoint, error) {
	if len(estimates) == 0 {
		return domain.BlendedForecastPoint{}, fmt.Errorf("blend %s: %w", target.Format(time.RFC3339), domain.ErrNoForecastAvailable)
	}

	horizon := target.Sub(issued)
	policy := b.weightsFor(horizon)

	applied := make(map[domain.Method]float64, len(estimates))
	var total float64
	for _, e := range estimates {
		if w := policy[e.Method]; w > 0 {
			applied[e.Method] = w
			total += w
		}
	}
	if total == 0 {
		// Every available method carries zero policy weight at this
		// horizon; fall back to an even split rather than refusing.
		for _, e := range estimates {
			applied[e.Method] = 1
			total += 1
		}
	}
	for m := range applied {
		applied[m] /= total
	}

	var amount, low, high, vote float64
	for _, e := range estimates {
		w, ok := applied[e.Method]
		if !ok {
			continue
		}
		amount += w * e.PointMM
		low += w * e.ConfidenceLowMM
		high += w * e.ConfidenceHighMM
		if e.PointMM > b.rainThresholdMM {
			vote += w
		}
	}

	// Cross-method disagreement widens the interval.
	var disagreement float64
	for _, e := range estimates {
		w, ok := applied[e.Method]
		if !ok {
			continue
		}
		disagreement += w * (e.PointMM - amount) * (e.PointMM - amount)
	}
	disagreement = math.Sqrt(disagreement)
	low = math.Max(0, low-disagreementInflation*disagreement)
	high += disagreementInflation * disagreement
	low = math.Min(low, amount)
	high = math.Max(high, amount)

	prob := voteShare*vote + amountShare*(amount/(amount+amountSaturationMM))
	if wetDayFraction >= 0 {
		prob = (1-wetDayShare)*prob + wetDayShare*wetDayFraction
	}
	prob = math.Max(0, math.Min(1, prob))

	return domain.BlendedForecastPoint{
		Time:                     target,
		PrecipitationProbability: prob,
		PrecipitationAmountMM:    amount,
		ConfidenceLowMM:          low,
		ConfidenceHighMM:         high,
		Weights:                  applied,
	}, nil
}
