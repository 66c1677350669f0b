package estimator

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
)

// Features are the engineered inputs handed to a trained model: temporal
// cyclical encodings, lagged observed accumulations, and location features.
type Features struct {
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	Elevation    *float64 `json:"elevation,omitempty"`
	DayOfYearSin float64  `json:"doy_sin"`
	DayOfYearCos float64  `json:"doy_cos"`
	HourSin      float64  `json:"hour_sin"`
	HourCos      float64  `json:"hour_cos"`
	HorizonHours float64  `json:"horizon_hours"`
	Lag1hMM      float64  `json:"lag_1h_mm"`
	Lag24hMM     float64  `json:"lag_24h_mm"`
	Lag72hMM     float64  `json:"lag_72h_mm"`
}

// Prediction is a model's point estimate with its uncertainty band.
type Prediction struct {
	PointMM float64 `json:"point_mm"`
	LowMM   float64 `json:"low_mm"`
	HighMM  float64 `json:"high_mm"`
}

// Model is the pluggable regression capability. The engine does not
// prescribe the model's internals, only that it reports a point estimate and
// a spread, and may fail when not loaded or unreachable.
type Model interface {
	Predict(ctx context.Context, features Features) (Prediction, error)
}

// Regressor wraps a Model behind the common estimator contract.
type Regressor struct {
	model Model
}

// NewRegressor creates the trained-regressor estimator. A nil model makes
// every estimate fail with ErrModelUnavailable, which the blender tolerates.
func NewRegressor(model Model) *Regressor {
	return &Regressor{model: model}
}

func (r *Regressor) Method() domain.Method { return domain.MethodRegressor }

func (r *Regressor) Estimate(ctx context.Context, target time.Time, loc domain.Location, in Inputs) (domain.MethodEstimate, error) {
	if r.model == nil {
		return domain.MethodEstimate{}, fmt.Errorf("regressor has no model loaded: %w", domain.ErrModelUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return domain.MethodEstimate{}, fmt.Errorf("regressor: %w", domain.ErrUnavailable)
	}

	pred, err := r.model.Predict(ctx, BuildFeatures(target, loc, in))
	if err != nil {
		return domain.MethodEstimate{}, fmt.Errorf("regressor predict: %w: %v", domain.ErrModelUnavailable, err)
	}

	return domain.MethodEstimate{
		Method:           domain.MethodRegressor,
		Target:           target,
		PointMM:          pred.PointMM,
		ConfidenceLowMM:  pred.LowMM,
		ConfidenceHighMM: pred.HighMM,
	}.Clamp(), nil
}

// BuildFeatures engineers the model inputs for one target hour.
func BuildFeatures(target time.Time, loc domain.Location, in Inputs) Features {
	doy := float64(target.YearDay())
	hour := float64(target.Hour())
	return Features{
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		Elevation:    loc.Elevation,
		DayOfYearSin: math.Sin(2 * math.Pi * doy / 365.25),
		DayOfYearCos: math.Cos(2 * math.Pi * doy / 365.25),
		HourSin:      math.Sin(2 * math.Pi * hour / 24),
		HourCos:      math.Cos(2 * math.Pi * hour / 24),
		HorizonHours: target.Sub(in.Issued).Hours(),
		Lag1hMM:      accumulationSince(in.Series, in.Issued.Add(-1*time.Hour), in.Issued),
		Lag24hMM:     accumulationSince(in.Series, in.Issued.Add(-24*time.Hour), in.Issued),
		Lag72hMM:     accumulationSince(in.Series, in.Issued.Add(-72*time.Hour), in.Issued),
	}
}

// accumulationSince sums observed precipitation in [from, to).
func accumulationSince(series domain.ObservationSeries, from, to time.Time) float64 {
	var sum float64
	for _, s := range series.Since(from) {
		if !s.Time.Before(to) {
			break
		}
		sum += s.PrecipitationMM
	}
	return sum
}
