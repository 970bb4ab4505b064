package iauditrepo

import (
	"context"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
)

// IAuditRepository is interface for the append-only inventory ledger.
type IAuditRepository interface {
	Record(ctx context.Context, entries ...auditentry.Entry) error
	SumDeltas(ctx context.Context, productID string) (int64, error)
	ListByProduct(ctx context.Context, productID string) ([]auditentry.Entry, error)
	ListByOrder(ctx context.Context, orderID string) ([]auditentry.Entry, error)
}
