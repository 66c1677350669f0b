package config_test

import (
	"testing"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "precipitation-observations", cfg.KafkaObservationTopic)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	assert.Equal(t, 30, cfg.ReferenceYears)
	assert.Equal(t, 20, cfg.MinSamplesPerPeriod)
	assert.Equal(t, 15, cfg.DayWindow)
	assert.InDelta(t, 0.1, cfg.RainThresholdMM, 1e-9)
	assert.Equal(t, 5, cfg.AnalogK)
	assert.Equal(t, 72*time.Hour, cfg.PersistenceCeiling)
	assert.Equal(t, 256, cfg.NormalsCacheSize)
	assert.Equal(t, 6*time.Hour, cfg.NormalsRefreshInterval)
	assert.Empty(t, cfg.ModelEndpoint)
	assert.InDelta(t, 0.8, cfg.ConfidenceHighCutoff, 1e-9)
	assert.InDelta(t, 0.6, cfg.ConfidenceModerateCutoff, 1e-9)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("KAFKA_OBSERVATION_TOPIC", "obs")
	t.Setenv("REFERENCE_YEARS", "10")
	t.Setenv("ANALOG_K", "7")
	t.Setenv("PERSISTENCE_CEILING", "48h")
	t.Setenv("MODEL_ENDPOINT", "http://model:9000/predict")
	t.Setenv("MEASURABLE_RAIN_THRESHOLD_MM", "0.25")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "obs", cfg.KafkaObservationTopic)
	assert.Equal(t, 10, cfg.ReferenceYears)
	assert.Equal(t, 7, cfg.AnalogK)
	assert.Equal(t, 48*time.Hour, cfg.PersistenceCeiling)
	assert.Equal(t, "http://model:9000/predict", cfg.ModelEndpoint)
	assert.InDelta(t, 0.25, cfg.RainThresholdMM, 1e-9)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric years", "REFERENCE_YEARS", "many"},
		{"zero years", "REFERENCE_YEARS", "0"},
		{"bad duration", "PERSISTENCE_CEILING", "soon"},
		{"negative threshold", "MEASURABLE_RAIN_THRESHOLD_MM", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_CutoffOrdering(t *testing.T) {
	t.Setenv("CONFIDENCE_HIGH_CUTOFF", "0.5")
	t.Setenv("CONFIDENCE_MODERATE_CUTOFF", "0.7")
	_, err := config.Load()
	assert.Error(t, err)
}
