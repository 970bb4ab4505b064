package iorderrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
)

// IOrderRepository is an interface for order repository.
type IOrderRepository interface {
	Create(ctx context.Context, o order.Order) (order.Order, error)
	MarkFulfilled(ctx context.Context, id string, at time.Time) error
	MarkShipped(ctx context.Context, id string, at time.Time) error
	Get(ctx context.Context, id string) (order.Order, error)
	Query(ctx context.Context, filter *order.Filter) ([]order.Order, error)
}
