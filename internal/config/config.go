package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers          []string
	KafkaObservationTopic string
	KafkaGroupID          string
	HTTPAddr              string
	LogLevel              string
	LogFormat             string
	ShutdownTimeout       time.Duration

	// Climatology settings.
	ReferenceYears      int
	MinSamplesPerPeriod int
	DayWindow           int
	RainThresholdMM     float64

	// Estimator settings.
	AnalogK           int
	PersistenceCeiling time.Duration

	// Normals cache and refresh.
	NormalsCacheSize       int
	NormalsRefreshInterval time.Duration

	// Observation retention in the in-memory store. Zero keeps everything.
	ObservationMaxAge time.Duration

	// Remote trained-regressor model. Empty endpoint disables the method.
	ModelEndpoint string
	ModelTimeout  time.Duration

	// Confidence score cutoffs for the request-level high/moderate/low label.
	ConfidenceHighCutoff     float64
	ConfidenceModerateCutoff float64
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	referenceYears, err := parsePositiveInt("REFERENCE_YEARS", 30)
	if err != nil {
		return nil, err
	}
	minSamples, err := parsePositiveInt("MIN_SAMPLES_PER_PERIOD", 20)
	if err != nil {
		return nil, err
	}
	dayWindow, err := parsePositiveInt("CLIMATOLOGY_DAY_WINDOW", 15)
	if err != nil {
		return nil, err
	}
	analogK, err := parsePositiveInt("ANALOG_K", 5)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("NORMALS_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	rainThreshold, err := parseFloat("MEASURABLE_RAIN_THRESHOLD_MM", 0.1)
	if err != nil {
		return nil, err
	}
	highCutoff, err := parseFloat("CONFIDENCE_HIGH_CUTOFF", 0.8)
	if err != nil {
		return nil, err
	}
	moderateCutoff, err := parseFloat("CONFIDENCE_MODERATE_CUTOFF", 0.6)
	if err != nil {
		return nil, err
	}

	persistenceCeiling, err := parseDuration("PERSISTENCE_CEILING", "72h")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("NORMALS_REFRESH_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}
	modelTimeout, err := parseDuration("MODEL_TIMEOUT", "2s")
	if err != nil {
		return nil, err
	}
	maxAge, err := parseDuration("OBSERVATION_MAX_AGE", "0s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:          sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaObservationTopic: sharedcfg.EnvOrDefault("KAFKA_OBSERVATION_TOPIC", "precipitation-observations"),
		KafkaGroupID:          sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "precip-forecast"),
		HTTPAddr:              sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:              sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:             sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:       shutdownTimeout,

		ReferenceYears:      referenceYears,
		MinSamplesPerPeriod: minSamples,
		DayWindow:           dayWindow,
		RainThresholdMM:     rainThreshold,

		AnalogK:            analogK,
		PersistenceCeiling: persistenceCeiling,

		NormalsCacheSize:       cacheSize,
		NormalsRefreshInterval: refreshInterval,
		ObservationMaxAge:      maxAge,

		ModelEndpoint: os.Getenv("MODEL_ENDPOINT"),
		ModelTimeout:  modelTimeout,

		ConfidenceHighCutoff:     highCutoff,
		ConfidenceModerateCutoff: moderateCutoff,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaObservationTopic == "" {
		return nil, errors.New("KAFKA_OBSERVATION_TOPIC is required")
	}
	if cfg.ConfidenceModerateCutoff > cfg.ConfidenceHighCutoff {
		return nil, errors.New("CONFIDENCE_MODERATE_CUTOFF must not exceed CONFIDENCE_HIGH_CUTOFF")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}
