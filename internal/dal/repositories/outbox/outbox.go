package outboxrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/outbox"
	"github.com/jmoiron/sqlx"
)

// MessageDal represents outbox data access layer model.
type MessageDal struct {
	Id          int64     `db:"id"`
	MessageId   string    `db:"message_id"`
	EventType   string    `db:"event_type"`
	AggregateId string    `db:"aggregate_id"`
	Payload     []byte    `db:"payload"`
	ContentType string    `db:"content_type"`
	RetryCount  int       `db:"retry_count"`
	MaxRetries  int       `db:"max_retries"`
	LastError   string    `db:"last_error"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	NextRetryAt time.Time `db:"next_retry_at"`
}

// ToModel converts MessageDal to service layer OutboxMessage model.
func (m *MessageDal) ToModel() outbox.OutboxMessage {
	return outbox.OutboxMessage{
		ID:          m.Id,
		MessageID:   m.MessageId,
		EventType:   m.EventType,
		AggregateID: m.AggregateId,
		Payload:     m.Payload,
		ContentType: m.ContentType,
		RetryCount:  m.RetryCount,
		MaxRetries:  m.MaxRetries,
		LastError:   m.LastError,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		NextRetryAt: m.NextRetryAt,
	}
}

var messageColumns = []string{
	"id",
	"message_id",
	"event_type",
	"aggregate_id",
	"payload",
	"content_type",
	"retry_count",
	"max_retries",
	"last_error",
	"created_at",
	"updated_at",
	"next_retry_at",
}

// OutboxRepository stores events written alongside the change they describe.
type OutboxRepository struct {
	conn sqlx.ExtContext
}

// NewOutboxRepository creates a new outbox repository.
func NewOutboxRepository(conn sqlx.ExtContext) *OutboxRepository {
	return &OutboxRepository{
		conn: conn,
	}
}

// Insert queues one event. The id column is assigned by the database.
func (r *OutboxRepository) Insert(ctx context.Context, msg outbox.OutboxMessage) error {
	query, args, err := sq.Insert("outbox").
		Columns(messageColumns[1:]...).
		Values(
			msg.MessageID,
			msg.EventType,
			msg.AggregateID,
			msg.Payload,
			msg.ContentType,
			msg.RetryCount,
			msg.MaxRetries,
			msg.LastError,
			msg.CreatedAt.UTC(),
			msg.UpdatedAt.UTC(),
			msg.NextRetryAt.UTC(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.ExecContext(ctx, r.conn.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to insert outbox message: %w", err)
	}

	return nil
}

// ListDue returns events whose next attempt is due at now and whose retries are not exhausted.
func (r *OutboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error) {
	query, args, err := sq.Select(messageColumns...).
		From("outbox").
		Where(sq.LtOrEq{"next_retry_at": now.UTC()}).
		Where("retry_count < max_retries").
		OrderBy("next_retry_at", "id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var dals []MessageDal
	if err := sqlx.SelectContext(ctx, r.conn, &dals, r.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query outbox messages: %w", err)
	}

	messages := make([]outbox.OutboxMessage, 0, len(dals))
	for i := range dals {
		messages = append(messages, dals[i].ToModel())
	}

	return messages, nil
}

// Delete drops a delivered event.
func (r *OutboxRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := sq.Delete("outbox").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.ExecContext(ctx, r.conn.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to delete outbox message: %w", err)
	}

	return nil
}

// Reschedule stores the failed attempt count and error and moves the next attempt to at.
func (r *OutboxRepository) Reschedule(
	ctx context.Context,
	id int64,
	retryCount int,
	lastError string,
	at time.Time,
) error {
	query, args, err := sq.Update("outbox").
		SetMap(map[string]any{
			"retry_count":   retryCount,
			"last_error":    lastError,
			"next_retry_at": at.UTC(),
			"updated_at":    time.Now().UTC(),
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.ExecContext(ctx, r.conn.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to reschedule outbox message: %w", err)
	}

	return nil
}
