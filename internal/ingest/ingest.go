// Package ingest consumes observation samples from the source topic and feeds
// the in-memory observation store, invalidating cached climate normals for
// any grid cell that receives new data.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/domain"
	"github.com/couchcryptid/precip-forecast/internal/observability"
	"github.com/couchcryptid/precip-forecast/internal/store"
)

// RawMessage is one unparsed observation message from the source.
type RawMessage struct {
	Topic     string
	Partition int
	Offset    int64
	Value     []byte

	// Commit acknowledges the message; nil when the source does not track
	// offsets (tests, file replay).
	Commit func(ctx context.Context) error
}

// BatchExtractor reads up to batchSize raw messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]RawMessage, error)
}

// Invalidator drops cached normals for a grid cell after new observations
// arrive.
type Invalidator interface {
	Invalidate(key string)
}

// observationMessage is the wire format on the observation topic.
type observationMessage struct {
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Time            time.Time `json:"time"`
	PrecipitationMM float64   `json:"precipitation_mm"`
	TemperatureC    *float64  `json:"temperature_c,omitempty"`
	HumidityPct     *float64  `json:"humidity_pct,omitempty"`
	WindSpeedKMH    *float64  `json:"wind_speed_kmh,omitempty"`
}

// Ingest runs the consume loop.
type Ingest struct {
	extractor BatchExtractor
	store     *store.Memory
	cache     Invalidator
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

func New(e BatchExtractor, s *store.Memory, cache Invalidator, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Ingest {
	return &Ingest{
		extractor: e,
		store:     s,
		cache:     cache,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once at least one batch has been stored.
func (in *Ingest) CheckReadiness(_ context.Context) error {
	if !in.ready.Load() {
		return errors.New("no observations ingested yet")
	}
	return nil
}

// Run executes the consume loop until the context is cancelled.
func (in *Ingest) Run(ctx context.Context) error {
	in.logger.Info("ingest started", "batch_size", in.batchSize)
	in.metrics.IngestRunning.Set(1)
	defer in.metrics.IngestRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			in.logger.Info("ingest stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !in.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-parse-store cycle. Returns false if the loop
// should stop.
func (in *Ingest) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	batch, err := in.extractor.ExtractBatch(ctx, in.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		in.logger.Error("extract batch failed", "error", err)
		return in.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(batch) == 0 {
		return ctx.Err() == nil
	}
	*backoff = 200 * time.Millisecond

	touched := make(map[string]struct{})
	stored := 0
	for _, raw := range batch {
		key, sample, err := parseObservation(raw.Value)
		if err != nil {
			in.logger.Warn("parse observation failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			in.metrics.IngestErrors.Inc()
			in.commitOffset(ctx, raw)
			continue
		}
		in.store.Append(key, sample)
		touched[key] = struct{}{}
		stored++
		in.commitOffset(ctx, raw)
	}

	// New data makes cached normals stale for the affected cells.
	for key := range touched {
		in.cache.Invalidate(key)
	}

	if stored > 0 {
		in.metrics.SamplesIngested.Add(float64(stored))
		in.ready.Store(true)
	}
	return true
}

// parseObservation decodes one wire message into a grid key and sample.
func parseObservation(value []byte) (string, domain.ObservationSample, error) {
	var msg observationMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return "", domain.ObservationSample{}, fmt.Errorf("decode observation: %w", err)
	}
	if msg.Time.IsZero() {
		return "", domain.ObservationSample{}, errors.New("observation missing time")
	}
	if msg.PrecipitationMM < 0 {
		return "", domain.ObservationSample{}, fmt.Errorf("negative precipitation %.2f", msg.PrecipitationMM)
	}
	loc := domain.Location{Latitude: msg.Latitude, Longitude: msg.Longitude}
	sample := domain.ObservationSample{
		Time:            msg.Time.UTC(),
		PrecipitationMM: msg.PrecipitationMM,
		TemperatureC:    msg.TemperatureC,
		HumidityPct:     msg.HumidityPct,
		WindSpeedKMH:    msg.WindSpeedKMH,
	}
	return loc.GridKey(), sample, nil
}

func (in *Ingest) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

func (in *Ingest) commitOffset(ctx context.Context, raw RawMessage) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		in.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
