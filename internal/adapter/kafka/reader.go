// Package kafka adapts segmentio/kafka-go consumers to the ingest interfaces.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/precip-forecast/internal/config"
	"github.com/couchcryptid/precip-forecast/internal/ingest"
	kafkago "github.com/segmentio/kafka-go"
)

// drainWait bounds how long ExtractBatch waits for additional messages after
// the first one arrives, so partially filled batches still flow promptly.
const drainWait = 100 * time.Millisecond

// Reader consumes observation messages from the configured topic.
// It implements ingest.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the observation topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaObservationTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch blocks for the first message, then drains up to batchSize
// messages that are already available. Offsets are committed lazily via the
// per-message Commit callback once the ingest loop has stored the sample.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]ingest.RawMessage, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	batch := []ingest.RawMessage{r.wrap(first)}

	drainCtx, cancel := context.WithTimeout(ctx, drainWait)
	defer cancel()
	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(drainCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			r.logger.Warn("fetch message failed mid-batch", "error", err)
			break
		}
		batch = append(batch, r.wrap(msg))
	}
	return batch, nil
}

func (r *Reader) wrap(msg kafkago.Message) ingest.RawMessage {
	return ingest.RawMessage{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Value:     msg.Value,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
