package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
)

// IOutboxRepository is an interface for the transactional event outbox.
type IOutboxRepository interface {
	// Insert queues an event; call it inside the transaction that produced the event
	Insert(ctx context.Context, msg outbox.OutboxMessage) error

	// ListDue returns up to limit undelivered events scheduled at or before now
	// that still have retries left, oldest schedule first
	ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error)

	// Delete drops a delivered event
	Delete(ctx context.Context, id int64) error

	// Reschedule records a failed delivery and the time of the next attempt
	Reschedule(ctx context.Context, id int64, retryCount int, lastError string, at time.Time) error
}
