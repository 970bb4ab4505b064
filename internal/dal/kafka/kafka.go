package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/segmentio/kafka-go"
)

// Client publishes outbox events to a Kafka topic.
type Client struct {
	writer *kafka.Writer
}

// NewClient creates a writer for the configured topic. Messages are keyed by
// aggregate id so events of one order stay in one partition.
func NewClient(cfg config.KafkaConfig) *Client {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		RequiredAcks: kafka.RequireAll,
	}

	slog.Info("Kafka writer created", "brokers", cfg.Brokers, "topic", cfg.Topic)

	return &Client{writer: writer}
}

// Publish writes one outbox message.
func (c *Client) Publish(ctx context.Context, msg outbox.OutboxMessage) error {
	err := c.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.AggregateID),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(msg.MessageID)},
			{Key: "event_type", Value: []byte(msg.EventType)},
			{Key: "content_type", Value: []byte(msg.ContentType)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	return nil
}

// Close flushes pending writes and closes the writer.
func (c *Client) Close() error {
	return c.writer.Close()
}
