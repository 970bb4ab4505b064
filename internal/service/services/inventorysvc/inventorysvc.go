package inventorysvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type transactor interface {
	Read() uow.Work
	RunAtomic(ctx context.Context, fn func(ctx context.Context, w uow.Work) error) error
}

// InventoryService manages the product catalog and manual stock changes.
type InventoryService struct {
	tx  transactor
	now func() time.Time
}

// option is a function that configures the InventoryService.
type option func(*InventoryService)

// MustNewInventoryService creates a new InventoryService.
func MustNewInventoryService(opts ...option) *InventoryService {
	s := &InventoryService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.tx == nil {
		panic("inventory service requires a transaction coordinator")
	}

	return s
}

// WithCoordinator sets the transaction coordinator.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCoordinator(tx transactor) option {
	return func(s *InventoryService) {
		s.tx = tx
	}
}

// CreateProduct seeds a product. Its stock becomes the initial stock the ledger
// is reconciled against.
func (s *InventoryService) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InventoryService.CreateProduct")
	defer span.End()

	switch {
	case p.ID == "":
		return product.Product{}, fmt.Errorf("%w: id is required", product.ErrInvalid)
	case p.Stock < 0:
		return product.Product{}, fmt.Errorf("%w: stock must not be negative", product.ErrInvalid)
	case p.UnitPriceCents < 0:
		return product.Product{}, fmt.Errorf("%w: unit price must not be negative", product.ErrInvalid)
	case p.ReorderThreshold < 0:
		return product.Product{}, fmt.Errorf("%w: reorder threshold must not be negative", product.ErrInvalid)
	}

	now := s.now().UTC()
	p.InitialStock = p.Stock
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.tx.Read().ProductRepository().Create(ctx, p); err != nil {
		return product.Product{}, err
	}

	slog.InfoContext(ctx, "Product created", "product_id", p.ID, "stock", p.Stock)

	return p, nil
}

// GetProduct returns one product.
func (s *InventoryService) GetProduct(ctx context.Context, id string) (product.Product, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InventoryService.GetProduct")
	defer span.End()

	return s.tx.Read().ProductRepository().Get(ctx, id)
}

// GetStock returns the current stock of a product.
func (s *InventoryService) GetStock(ctx context.Context, id string) (int64, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InventoryService.GetStock")
	defer span.End()

	return s.tx.Read().ProductRepository().GetStock(ctx, id)
}

// Restock adds delivered stock and records it with reason restock.
func (s *InventoryService) Restock(ctx context.Context, id string, quantity int64) (int64, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InventoryService.Restock")
	defer span.End()

	return s.increment(ctx, id, quantity, auditentry.ReasonRestock)
}

// RestoreStock is the compensating increment for corrections made outside a
// fulfillment transaction. It is recorded with reason adjustment.
func (s *InventoryService) RestoreStock(ctx context.Context, id string, quantity int64) (int64, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InventoryService.RestoreStock")
	defer span.End()

	return s.increment(ctx, id, quantity, auditentry.ReasonAdjustment)
}

func (s *InventoryService) increment(
	ctx context.Context,
	id string,
	quantity int64,
	reason auditentry.Reason,
) (int64, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity must be positive", product.ErrInvalid)
	}

	var stock int64
	err := s.tx.RunAtomic(ctx, func(ctx context.Context, w uow.Work) error {
		var err error
		stock, err = w.ProductRepository().Increment(ctx, id, quantity)
		if err != nil {
			return err
		}

		return w.AuditRepository().Record(ctx, auditentry.Entry{
			ProductID: id,
			Delta:     quantity,
			Reason:    reason,
			CreatedAt: s.now().UTC(),
		})
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Stock increased",
		"product_id", id,
		"quantity", quantity,
		"reason", reason,
		"stock", stock,
	)

	return stock, nil
}

// Reconcile compares initial stock plus the ledger sum with the stored stock.
func (s *InventoryService) Reconcile(ctx context.Context, id string) (product.Reconciliation, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InventoryService.Reconcile")
	defer span.End()

	rec, err := s.tx.Read().ProductRepository().Reconcile(ctx, id)
	if err != nil {
		return product.Reconciliation{}, err
	}

	span.SetAttributes(attribute.Bool("reconciliation.balanced", rec.Balanced))
	if !rec.Balanced {
		slog.ErrorContext(ctx, "Inventory ledger out of balance",
			"product_id", id,
			"expected", rec.Expected,
			"actual", rec.Actual,
		)
	}

	return rec, nil
}

// LowStock lists products at or below their reorder threshold.
func (s *InventoryService) LowStock(ctx context.Context) ([]product.Product, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InventoryService.LowStock")
	defer span.End()

	return s.tx.Read().ProductRepository().ListLowStock(ctx)
}

// History returns the ledger of one product.
func (s *InventoryService) History(ctx context.Context, id string) ([]auditentry.Entry, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "InventoryService.History")
	defer span.End()

	if _, err := s.tx.Read().ProductRepository().Get(ctx, id); err != nil {
		return nil, err
	}

	return s.tx.Read().AuditRepository().ListByProduct(ctx, id)
}
