package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/streadway/amqp"
)

// Client publishes fulfillment events to a single durable queue.
type Client struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

// NewClient dials the broker, opens a channel and makes sure the event queue exists.
func NewClient(cfg config.RabbitMQConfig) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Error("Failed to close a connection", "error", closeErr)
		}

		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	c := &Client{conn: conn, ch: ch, queue: cfg.Queue}

	// durable, not auto-deleted, shared
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = c.Close()

		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	slog.Info("RabbitMQ connected", "queue", cfg.Queue)

	return c, nil
}

// Publish sends msg as a persistent delivery. The aggregate id and the
// delivery attempt travel as headers.
func (c *Client) Publish(ctx context.Context, msg outbox.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Type:         msg.EventType,
		Timestamp:    msg.CreatedAt,
		Headers: amqp.Table{
			"aggregate_id": msg.AggregateID,
			"attempt":      int32(msg.RetryCount + 1),
		},
		Body: msg.Payload,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ch.Publish("", c.queue, false, false, pub); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.MessageID, err)
	}

	return nil
}

// Close shuts the channel and then the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			return err
		}
		c.ch = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil

		return err
	}

	return nil
}
