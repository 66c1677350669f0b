package estimator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
	"github.com/couchcryptid/precip-forecast/internal/estimator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issued = time.Date(2025, time.October, 1, 6, 0, 0, 0, time.UTC)

// recentRain builds hourly samples for the days leading up to the issue time.
func recentRain(days int, mmPerHour float64) domain.ObservationSeries {
	var s domain.ObservationSeries
	start := issued.Add(-time.Duration(days) * 24 * time.Hour)
	for t := start; t.Before(issued); t = t.Add(time.Hour) {
		s = append(s, domain.ObservationSample{Time: t, PrecipitationMM: mmPerHour})
	}
	return s
}

// multiYearSeries builds one noon sample per day across the given years.
func multiYearSeries(years int, mmPerDay float64) domain.ObservationSeries {
	var s domain.ObservationSeries
	for y := issued.Year() - years; y < issued.Year(); y++ {
		for d := time.Date(y, 1, 1, 12, 0, 0, 0, time.UTC); d.Year() == y; d = d.AddDate(0, 0, 1) {
			s = append(s, domain.ObservationSample{Time: d, PrecipitationMM: mmPerDay})
		}
	}
	return s
}

func assertEstimateInvariants(t *testing.T, e domain.MethodEstimate) {
	t.Helper()
	assert.GreaterOrEqual(t, e.PointMM, 0.0)
	assert.GreaterOrEqual(t, e.ConfidenceLowMM, 0.0)
	assert.LessOrEqual(t, e.ConfidenceLowMM, e.PointMM)
	assert.GreaterOrEqual(t, e.ConfidenceHighMM, e.PointMM)
}

// --- persistence ---

func TestPersistence_EstimatesFromRecentConditions(t *testing.T) {
	p := estimator.NewPersistence()

	// One 12mm sample per recent day: every daily total is 12mm, so the
	// decay-weighted mean persists exactly 0.5mm/h.
	var series domain.ObservationSeries
	for d := 6; d >= 1; d-- {
		series = append(series, domain.ObservationSample{
			Time:            issued.AddDate(0, 0, -d).Add(6 * time.Hour),
			PrecipitationMM: 12,
		})
	}
	in := estimator.Inputs{Series: series, Issued: issued}

	e, err := p.Estimate(context.Background(), issued.Add(6*time.Hour), domain.Location{}, in)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodPersistence, e.Method)
	assert.InDelta(t, 0.5, e.PointMM, 1e-9)
	assertEstimateInvariants(t, e)
}

func TestPersistence_RefusesBeyondCeiling(t *testing.T) {
	p := estimator.NewPersistence()
	in := estimator.Inputs{Series: recentRain(5, 0.5), Issued: issued}

	_, err := p.Estimate(context.Background(), issued.Add(96*time.Hour), domain.Location{}, in)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestPersistence_RefusesWithoutRecentData(t *testing.T) {
	p := estimator.NewPersistence()
	in := estimator.Inputs{Series: nil, Issued: issued}

	_, err := p.Estimate(context.Background(), issued.Add(6*time.Hour), domain.Location{}, in)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

// --- analog ---

func TestAnalog_EstimatesFromSimilarDays(t *testing.T) {
	a := estimator.NewAnalog(5)
	in := estimator.Inputs{Series: multiYearSeries(4, 2.0), Issued: issued}

	e, err := a.Estimate(context.Background(), issued.Add(10*24*time.Hour), domain.Location{}, in)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodAnalog, e.Method)
	// Every historical day totals 2mm, so the analog mean is 2/24 per hour.
	assert.InDelta(t, 2.0/24, e.PointMM, 1e-9)
	assertEstimateInvariants(t, e)
}

func TestAnalog_RefusesShallowHistory(t *testing.T) {
	a := estimator.NewAnalog(5)
	in := estimator.Inputs{Series: recentRain(10, 1.0), Issued: issued}

	_, err := a.Estimate(context.Background(), issued.Add(24*time.Hour), domain.Location{}, in)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

// --- climatology ---

func TestClimatology_ScalesDayNormal(t *testing.T) {
	c := estimator.NewClimatology()
	target := issued.Add(40 * 24 * time.Hour)
	in := estimator.Inputs{
		Normals: map[domain.Period]domain.ClimateNormal{
			domain.DayOfYearPeriod(target): {MeanMM: 12, StdDevMM: 6},
		},
		Issued: issued,
	}

	e, err := c.Estimate(context.Background(), target, domain.Location{}, in)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, e.PointMM, 1e-9)
	assertEstimateInvariants(t, e)
}

func TestClimatology_FallsBackToMonthNormal(t *testing.T) {
	c := estimator.NewClimatology()
	target := time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)
	in := estimator.Inputs{
		Normals: map[domain.Period]domain.ClimateNormal{
			domain.MonthPeriod(target): {MeanMM: 72}, // November: 30 days
		},
		Issued: issued,
	}

	e, err := c.Estimate(context.Background(), target, domain.Location{}, in)
	require.NoError(t, err)
	assert.InDelta(t, 72.0/(30*24), e.PointMM, 1e-9)
}

func TestClimatology_RefusesWithoutNormal(t *testing.T) {
	c := estimator.NewClimatology()
	in := estimator.Inputs{Normals: map[domain.Period]domain.ClimateNormal{}, Issued: issued}

	_, err := c.Estimate(context.Background(), issued.Add(24*time.Hour), domain.Location{}, in)
	assert.ErrorIs(t, err, domain.ErrNoNormalAvailable)
}

// --- trained regressor ---

type stubModel struct {
	pred estimator.Prediction
	err  error
	seen estimator.Features
}

func (m *stubModel) Predict(_ context.Context, f estimator.Features) (estimator.Prediction, error) {
	m.seen = f
	return m.pred, m.err
}

func TestRegressor_NilModelUnavailable(t *testing.T) {
	r := estimator.NewRegressor(nil)
	_, err := r.Estimate(context.Background(), issued.Add(time.Hour), domain.Location{}, estimator.Inputs{Issued: issued})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestRegressor_PredictErrorWrapsUnavailable(t *testing.T) {
	r := estimator.NewRegressor(&stubModel{err: errors.New("server down")})
	_, err := r.Estimate(context.Background(), issued.Add(time.Hour), domain.Location{}, estimator.Inputs{Issued: issued})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
}

func TestRegressor_ClampsPrediction(t *testing.T) {
	r := estimator.NewRegressor(&stubModel{pred: estimator.Prediction{PointMM: 0.4, LowMM: -1, HighMM: 0.2}})
	e, err := r.Estimate(context.Background(), issued.Add(time.Hour), domain.Location{}, estimator.Inputs{Issued: issued})
	require.NoError(t, err)
	assertEstimateInvariants(t, e)
	assert.InDelta(t, 0.4, e.PointMM, 1e-9)
}

func TestBuildFeatures(t *testing.T) {
	target := issued.Add(48 * time.Hour)
	in := estimator.Inputs{Series: recentRain(4, 1.0), Issued: issued}

	f := estimator.BuildFeatures(target, domain.Location{Latitude: 47.6, Longitude: -122.3}, in)
	assert.InDelta(t, 48.0, f.HorizonHours, 1e-9)
	assert.InDelta(t, 47.6, f.Latitude, 1e-9)
	// One 1mm sample fell in the hour before issue.
	assert.InDelta(t, 1.0, f.Lag1hMM, 1e-9)
	assert.InDelta(t, 24.0, f.Lag24hMM, 1e-9)
	assert.InDelta(t, 72.0, f.Lag72hMM, 1e-9)
	// Cyclical encodings stay on the unit circle.
	assert.InDelta(t, 1.0, f.DayOfYearSin*f.DayOfYearSin+f.DayOfYearCos*f.DayOfYearCos, 1e-9)
	assert.InDelta(t, 1.0, f.HourSin*f.HourSin+f.HourCos*f.HourCos, 1e-9)
}
