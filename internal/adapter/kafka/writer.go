// Package kafka publishes flagged anomalies to a Kafka topic. Publishing is
// batched per pipeline run; there is no streaming path.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/river-gauge-etl/internal/config"
	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

// Writer produces anomaly events to the configured topic.
// It implements pipeline.AnomalySink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the anomaly topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAnomalyTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishAnomalies serializes and publishes the events of one run in a
// single WriteMessages call. Messages are keyed by site so one gauge's
// anomalies stay ordered within a partition.
func (w *Writer) PublishAnomalies(ctx context.Context, events []domain.AnomalyEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish anomalies: %w", err)
	}
	w.logger.Debug("anomalies published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an anomaly into a Kafka message. Non-finite
// scores, produced by zero-variance windows, are clamped to the largest
// finite float because JSON has no representation for them.
func serializeToMessage(event domain.AnomalyEvent) (kafkago.Message, error) {
	if math.IsInf(event.Score, 1) {
		event.Score = math.MaxFloat64
	} else if math.IsInf(event.Score, -1) {
		event.Score = -math.MaxFloat64
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize anomaly: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Site),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "parameter", Value: []byte(event.Parameter)},
			{Key: "instant", Value: []byte(event.Instant.Format(time.RFC3339))},
		},
	}, nil
}
