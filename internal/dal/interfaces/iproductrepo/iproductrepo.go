package iproductrepo

import (
	"context"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
)

// IProductRepository is an interface for the inventory store.
type IProductRepository interface {
	// Create seeds a new product; fails with product.ErrAlreadyExists on a taken id
	Create(ctx context.Context, p product.Product) error

	// Get returns one product or product.ErrNotFound
	Get(ctx context.Context, id string) (product.Product, error)

	// GetByIDs returns the subset of ids that exist
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)

	// GetStock returns the current stock or product.ErrNotFound
	GetStock(ctx context.Context, id string) (int64, error)

	// Reserve decrements stock iff enough is available and returns the remaining stock
	Reserve(ctx context.Context, id string, quantity int64) (int64, error)

	// Reconcile compares seed plus ledger sum with the stored stock, read from one snapshot
	Reconcile(ctx context.Context, id string) (product.Reconciliation, error)

	// Increment adds stock and returns the new level
	Increment(ctx context.Context, id string, quantity int64) (int64, error)

	// ListLowStock returns products at or below their reorder threshold
	ListLowStock(ctx context.Context) ([]product.Product, error)
}
