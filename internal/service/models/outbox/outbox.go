package outbox

import (
	"time"
)

// EventOrderFulfilled is the event type emitted after a fulfillment commits.
const EventOrderFulfilled = "order.fulfilled"

// OutboxMessage represents an event written in the same transaction as the change it describes.
type OutboxMessage struct {
	ID          int64
	MessageID   string
	EventType   string
	AggregateID string
	Payload     []byte
	ContentType string
	RetryCount  int
	MaxRetries  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	NextRetryAt time.Time
}
