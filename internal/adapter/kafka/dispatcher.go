// Package kafka publishes alert notification payloads to a Kafka topic for
// delivery by downstream notification services.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-cache-service/internal/config"
	"github.com/couchcryptid/weather-cache-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the dispatcher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Dispatcher implements domain.AlertDispatcher.
type Dispatcher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

var _ domain.AlertDispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a producer for the configured alert topic.
func NewDispatcher(cfg *config.Config, logger *slog.Logger) *Dispatcher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaAlertTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Dispatcher{writer: w, topic: cfg.KafkaAlertTopic, logger: logger}
}

// Enqueue publishes one payload keyed by alert id, so every message for an
// alert lands on the same partition.
func (d *Dispatcher) Enqueue(ctx context.Context, p domain.NotificationPayload) error {
	msg, err := serializeToMessage(p)
	if err != nil {
		return err
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish alert %s to %s: %w", p.AlertID, d.topic, err)
	}
	d.logger.Debug("alert notification published", "alert_id", p.AlertID, "topic", d.topic)
	return nil
}

// Close flushes pending writes and closes the producer.
func (d *Dispatcher) Close() error {
	return d.writer.Close()
}

// serializeToMessage marshals a NotificationPayload into a Kafka message.
func serializeToMessage(p domain.NotificationPayload) (kafkago.Message, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize notification: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(p.AlertID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "severity", Value: []byte(p.Severity)},
			{Key: "created_at", Value: []byte(p.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
