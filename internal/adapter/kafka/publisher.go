package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/vagdata/trafik-etl/internal/config"
	"github.com/vagdata/trafik-etl/internal/domain"
)

// Publisher produces normalized incidents to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured incident topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishBatch serializes and publishes incidents in a single WriteMessages
// call. Keyed by incident id, so a compacted topic converges to the latest
// version of each incident.
func (p *Publisher) PublishBatch(ctx context.Context, rows []domain.Incident) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(rows))
	for i := range rows {
		msg, err := serializeToMessage(rows[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Incident into a Kafka message.
func serializeToMessage(row domain.Incident) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "status", Value: []byte(row.Status)},
	}
	if row.ModifiedTime != nil {
		headers = append(headers, kafkago.Header{
			Key:   "modified_time",
			Value: []byte(row.ModifiedTime.Format(time.RFC3339)),
		})
	}
	return kafkago.Message{
		Key:     []byte(row.IncidentID),
		Value:   data,
		Headers: headers,
	}, nil
}
