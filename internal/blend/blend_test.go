package blend_test

import (
	"testing"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/blend"
	"github.com/couchcryptid/precip-forecast/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issued = time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

func estimate(m domain.Method, point float64) domain.MethodEstimate {
	return domain.MethodEstimate{
		Method:           m,
		PointMM:          point,
		ConfidenceLowMM:  point * 0.5,
		ConfidenceHighMM: point * 1.5,
	}
}

func weightSum(w map[domain.Method]float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

func TestBlend_AppliedWeightsSumToOne(t *testing.T) {
	b := blend.New(blend.DefaultTable(), 0.1)
	target := issued.Add(12 * time.Hour)

	estimates := []domain.MethodEstimate{
		estimate(domain.MethodPersistence, 0.4),
		estimate(domain.MethodAnalog, 0.2),
		estimate(domain.MethodClimatology, 0.1),
		estimate(domain.MethodRegressor, 0.3),
	}

	p, err := b.Blend(target, issued, estimates, -1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, weightSum(p.Weights), 1e-9)
	assert.Len(t, p.Weights, 4)
}

func TestBlend_RenormalizesOverAvailableMethods(t *testing.T) {
	b := blend.New(blend.DefaultTable(), 0.1)
	// Mid bucket policy: analog 0.40, regressor 0.35, climatology 0.25.
	// With the regressor missing, analog and climatology renormalize to
	// 0.40/0.65 and 0.25/0.65.
	target := issued.Add(10 * 24 * time.Hour)

	estimates := []domain.MethodEstimate{
		estimate(domain.MethodAnalog, 0.2),
		estimate(domain.MethodClimatology, 0.1),
	}

	p, err := b.Blend(target, issued, estimates, -1)
	require.NoError(t, err)
	assert.InDelta(t, 0.40/0.65, p.Weights[domain.MethodAnalog], 1e-9)
	assert.InDelta(t, 0.25/0.65, p.Weights[domain.MethodClimatology], 1e-9)
	assert.InDelta(t, 1.0, weightSum(p.Weights), 1e-9)
}

func TestBlend_SingleMethodPassesThrough(t *testing.T) {
	b := blend.New(blend.DefaultTable(), 0.1)
	target := issued.Add(60 * 24 * time.Hour)

	p, err := b.Blend(target, issued, []domain.MethodEstimate{estimate(domain.MethodClimatology, 0.2)}, -1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.Weights[domain.MethodClimatology], 1e-9)
	assert.InDelta(t, 0.2, p.PrecipitationAmountMM, 1e-9)
}

func TestBlend_NoEstimatesFails(t *testing.T) {
	b := blend.New(blend.DefaultTable(), 0.1)
	_, err := b.Blend(issued.Add(time.Hour), issued, nil, -1)
	assert.ErrorIs(t, err, domain.ErrNoForecastAvailable)
}

func TestBlend_ZeroPolicyWeightFallsBackToEvenSplit(t *testing.T) {
	b := blend.New(blend.DefaultTable(), 0.1)
	// Persistence has no weight in the long bucket; as the only available
	// method it must still pass through rather than fail.
	target := issued.Add(90 * 24 * time.Hour)

	p, err := b.Blend(target, issued, []domain.MethodEstimate{estimate(domain.MethodPersistence, 0.3)}, -1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.Weights[domain.MethodPersistence], 1e-9)
	assert.InDelta(t, 0.3, p.PrecipitationAmountMM, 1e-9)
}

func TestBlend_IntervalInvariants(t *testing.T) {
	b := blend.New(blend.DefaultTable(), 0.1)
	target := issued.Add(12 * time.Hour)

	// Strongly disagreeing methods must widen the interval, never cross it.
	estimates := []domain.MethodEstimate{
		estimate(domain.MethodPersistence, 2.0),
		estimate(domain.MethodClimatology, 0.05),
	}

	p, err := b.Blend(target, issued, estimates, -1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.ConfidenceLowMM, 0.0)
	assert.LessOrEqual(t, p.ConfidenceLowMM, p.PrecipitationAmountMM)
	assert.GreaterOrEqual(t, p.ConfidenceHighMM, p.PrecipitationAmountMM)
}

func TestBlend_ProbabilityBounds(t *testing.T) {
	b := blend.New(blend.DefaultTable(), 0.1)
	target := issued.Add(12 * time.Hour)

	wet, err := b.Blend(target, issued, []domain.MethodEstimate{
		estimate(domain.MethodPersistence, 5.0),
		estimate(domain.MethodRegressor, 4.0),
	}, 0.9)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, wet.PrecipitationProbability, 0.0)
	assert.LessOrEqual(t, wet.PrecipitationProbability, 1.0)

	dry, err := b.Blend(target, issued, []domain.MethodEstimate{
		estimate(domain.MethodPersistence, 0.0),
	}, 0.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, dry.PrecipitationProbability, 1e-9)

	// Rainier inputs push the probability up.
	assert.Greater(t, wet.PrecipitationProbability, dry.PrecipitationProbability)
}

func TestBucketName(t *testing.T) {
	assert.Equal(t, "near", blend.BucketName(12*time.Hour))
	assert.Equal(t, "near", blend.BucketName(72*time.Hour))
	assert.Equal(t, "mid", blend.BucketName(10*24*time.Hour))
	assert.Equal(t, "long", blend.BucketName(100*24*time.Hour))
}
