package fulfillment

import (
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderline"
	"github.com/shopspring/decimal"
)

// State is a step of the fulfillment state machine.
type State string

const (
	StateReceived   State = "received"
	StateValidating State = "validating"
	StateReserving  State = "reserving"
	StatePersisting State = "persisting"
	StateCommitted  State = "committed"
	StateAborted    State = "aborted"
)

// Line is one requested product line.
type Line struct {
	ProductID      string          `json:"productId"`
	Quantity       int64           `json:"quantity"`
	UnitPriceCents int64           `json:"unitPriceCents"`
	Discount       decimal.Decimal `json:"discount"`
}

// Request is a typed fulfillment request.
type Request struct {
	CustomerID      string `json:"customerId"`
	ShippingAddress string `json:"shippingAddress,omitempty"`
	FreightCents    int64  `json:"freightCents,omitempty"`
	Lines           []Line `json:"lines"`
}

// Validation reasons.
const (
	ReasonEmptyCustomer  = "customer id is required"
	ReasonNoLines        = "order has no lines"
	ReasonEmptyProduct   = "product id is required"
	ReasonBadQuantity    = "quantity must be positive"
	ReasonBadPrice       = "unit price must not be negative"
	ReasonBadDiscount    = "discount must be in [0, 1) with at most 5 decimal places"
	ReasonBadFreight     = "freight must not be negative"
	ReasonUnknownProduct = "unknown product"
)

// check returns the reason the line is malformed, or "" when it is well formed.
// Product existence is not checked here.
func (l Line) check() string {
	switch {
	case l.ProductID == "":
		return ReasonEmptyProduct
	case l.Quantity <= 0:
		return ReasonBadQuantity
	case l.UnitPriceCents < 0:
		return ReasonBadPrice
	case !orderline.ValidDiscount(l.Discount):
		return ReasonBadDiscount
	}

	return ""
}

// Validate checks the request in line order against the set of known product ids.
// The first obstruction wins.
func (r Request) Validate(known map[string]bool) error {
	if r.CustomerID == "" {
		return &ValidationError{Line: -1, Reason: ReasonEmptyCustomer}
	}
	if r.FreightCents < 0 {
		return &ValidationError{Line: -1, Reason: ReasonBadFreight}
	}
	if len(r.Lines) == 0 {
		return &ValidationError{Line: -1, Reason: ReasonNoLines}
	}

	for i, l := range r.Lines {
		if reason := l.check(); reason != "" {
			return &ValidationError{Line: i, ProductID: l.ProductID, Reason: reason}
		}
		if !known[l.ProductID] {
			return &ValidationError{Line: i, ProductID: l.ProductID, Reason: ReasonUnknownProduct}
		}
	}

	return nil
}

// ProductIDs returns the distinct product ids in first-seen order.
func (r Request) ProductIDs() []string {
	seen := make(map[string]bool, len(r.Lines))
	ids := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		if l.ProductID == "" || seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		ids = append(ids, l.ProductID)
	}

	return ids
}
