package auditrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
	"github.com/jmoiron/sqlx"
)

// EntryDal represents inventory ledger data access layer model.
type EntryDal struct {
	Id        int64          `db:"id"`
	ProductId string         `db:"product_id"`
	Delta     int64          `db:"delta"`
	Reason    string         `db:"reason"`
	OrderId   sql.NullString `db:"order_id"`
	CreatedAt time.Time      `db:"created_at"`
}

// ToModel converts EntryDal to service layer Entry model.
func (e *EntryDal) ToModel() auditentry.Entry {
	return auditentry.Entry{
		ID:        e.Id,
		ProductID: e.ProductId,
		Delta:     e.Delta,
		Reason:    auditentry.Reason(e.Reason),
		OrderID:   e.OrderId.String,
		CreatedAt: e.CreatedAt,
	}
}

var entryColumns = []string{"id", "product_id", "delta", "reason", "order_id", "created_at"}

// AuditRepository is the append-only inventory ledger. There is no update or delete.
type AuditRepository struct {
	conn sqlx.ExtContext
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(conn sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{
		conn: conn,
	}
}

// Record appends entries in a single statement. Calling it with no entries is a no-op.
func (r *AuditRepository) Record(ctx context.Context, entries ...auditentry.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	builder := sq.Insert("inventory_audit").
		Columns("product_id", "delta", "reason", "order_id", "created_at")
	for _, e := range entries {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		builder = builder.Values(
			e.ProductID,
			e.Delta,
			string(e.Reason),
			sql.NullString{String: e.OrderID, Valid: e.OrderID != ""},
			createdAt.UTC(),
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.ExecContext(ctx, r.conn.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to insert audit entries: %w", err)
	}

	return nil
}

// SumDeltas returns the sum of all recorded deltas for a product, 0 when there are none.
func (r *AuditRepository) SumDeltas(ctx context.Context, productID string) (int64, error) {
	query, args, err := sq.Select("CAST(COALESCE(SUM(delta), 0) AS BIGINT)").
		From("inventory_audit").
		Where(sq.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build select query: %w", err)
	}

	var sum int64
	if err := sqlx.GetContext(ctx, r.conn, &sum, r.conn.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to sum audit deltas: %w", err)
	}

	return sum, nil
}

// ListByProduct returns the ledger of one product in insertion order.
func (r *AuditRepository) ListByProduct(ctx context.Context, productID string) ([]auditentry.Entry, error) {
	return r.list(ctx, sq.Eq{"product_id": productID})
}

// ListByOrder returns the entries caused by one order in insertion order.
func (r *AuditRepository) ListByOrder(ctx context.Context, orderID string) ([]auditentry.Entry, error) {
	return r.list(ctx, sq.Eq{"order_id": orderID})
}

func (r *AuditRepository) list(ctx context.Context, where sq.Eq) ([]auditentry.Entry, error) {
	query, args, err := sq.Select(entryColumns...).
		From("inventory_audit").
		Where(where).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var dals []EntryDal
	if err := sqlx.SelectContext(ctx, r.conn, &dals, r.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	entries := make([]auditentry.Entry, 0, len(dals))
	for i := range dals {
		entries = append(entries, dals[i].ToModel())
	}

	return entries, nil
}
