package product

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a product id is unknown to the store.
var ErrNotFound = errors.New("product not found")

// ErrAlreadyExists is returned when seeding a product whose id is taken.
var ErrAlreadyExists = errors.New("product already exists")

// ErrStockChanged is returned when stock kept moving while a reservation was
// being decided. The surrounding transaction can be retried.
var ErrStockChanged = errors.New("stock changed concurrently")

// ErrInvalid wraps rejected product or stock-change input.
var ErrInvalid = errors.New("invalid product input")

// Product represents a sellable product and its authoritative stock level.
type Product struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	UnitPriceCents   int64     `json:"unitPriceCents"`
	Stock            int64     `json:"stock"`
	InitialStock     int64     `json:"initialStock"`
	ReorderThreshold int64     `json:"reorderThreshold"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// NeedsReorder reports whether stock has fallen to the reorder threshold.
func (p Product) NeedsReorder() bool {
	return p.Stock <= p.ReorderThreshold
}

// InsufficientStockError is returned when a reservation would overdraw stock.
type InsufficientStockError struct {
	ProductID string
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested,
	)
}

// Reconciliation compares the audit ledger against the stored stock level.
type Reconciliation struct {
	ProductID    string `json:"productId"`
	InitialStock int64  `json:"initialStock"`
	DeltaSum     int64  `json:"deltaSum"`
	Expected     int64  `json:"expected"`
	Actual       int64  `json:"actual"`
	Balanced     bool   `json:"balanced"`
}

// NewReconciliation builds a Reconciliation from the seed, the ledger sum and the current stock.
func NewReconciliation(productID string, initial, deltaSum, actual int64) Reconciliation {
	expected := initial + deltaSum

	return Reconciliation{
		ProductID:    productID,
		InitialStock: initial,
		DeltaSum:     deltaSum,
		Expected:     expected,
		Actual:       actual,
		Balanced:     expected == actual,
	}
}
