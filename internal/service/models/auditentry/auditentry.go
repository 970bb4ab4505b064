package auditentry

import "time"

// Reason classifies why an inventory level changed.
type Reason string

const (
	ReasonFulfillment Reason = "fulfillment"
	ReasonRestock     Reason = "restock"
	ReasonAdjustment  Reason = "adjustment"
)

// Entry is an immutable inventory ledger record.
// OrderID is empty when the change was not caused by an order.
type Entry struct {
	ID        int64     `json:"id"`
	ProductID string    `json:"productId"`
	Delta     int64     `json:"delta"`
	Reason    Reason    `json:"reason"`
	OrderID   string    `json:"orderId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
