package order

import (
	"errors"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderline"
)

var (
	// ErrNotFound is returned when an order id is unknown.
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyFulfilled is returned when fulfilling an order that is no longer pending.
	ErrAlreadyFulfilled = errors.New("order already fulfilled")
	// ErrInvalidTransition is returned for any other disallowed status change.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusShipped   Status = "shipped"
)

// CanTransitionTo reports whether the status may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusFulfilled
	case StatusFulfilled:
		return next == StatusShipped
	default:
		return false
	}
}

// Order represents an order header with its lines.
type Order struct {
	ID              string                `json:"id"`
	CustomerID      string                `json:"customerId"`
	Status          Status                `json:"status"`
	ShippingAddress string                `json:"shippingAddress,omitempty"`
	FreightCents    int64                 `json:"freightCents"`
	CreatedAt       time.Time             `json:"createdAt"`
	FulfilledAt     *time.Time            `json:"fulfilledAt,omitempty"`
	ShippedAt       *time.Time            `json:"shippedAt,omitempty"`
	Lines           []orderline.OrderLine `json:"lines"`
}

// TotalCents sums the discounted line totals plus freight.
func (o Order) TotalCents() int64 {
	total := o.FreightCents
	for _, l := range o.Lines {
		total += l.TotalCents()
	}

	return total
}

// View is the read model handed to external collaborators.
type View struct {
	Order
	TotalCents int64 `json:"totalCents"`
}

// NewView builds a View with the computed total.
func NewView(o Order) View {
	return View{Order: o, TotalCents: o.TotalCents()}
}
