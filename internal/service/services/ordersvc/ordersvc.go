package ordersvc

import (
	"context"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type transactor interface {
	Read() uow.Work
	RunAtomic(ctx context.Context, fn func(ctx context.Context, w uow.Work) error) error
}

// OrderService is a service for reading and advancing orders.
type OrderService struct {
	tx  transactor
	now func() time.Time
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if s.tx == nil {
		panic("order service requires a transaction coordinator")
	}

	return s
}

// WithCoordinator sets the transaction coordinator for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCoordinator(tx transactor) option {
	return func(s *OrderService) {
		s.tx = tx
	}
}

// GetOrder returns one order with its lines and total.
func (s *OrderService) GetOrder(ctx context.Context, id string) (order.View, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.GetOrder")
	defer span.End()

	span.SetAttributes(attribute.String("order.id", id))

	o, err := s.tx.Read().OrderRepository().Get(ctx, id)
	if err != nil {
		return order.View{}, err
	}

	return order.NewView(o), nil
}

// ListOrders retrieves orders based on filter, newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter order.Filter) ([]order.View, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.ListOrders")
	defer span.End()

	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	orders, err := s.tx.Read().OrderRepository().Query(ctx, &filter)
	if err != nil {
		return nil, err
	}

	views := make([]order.View, 0, len(orders))
	for _, o := range orders {
		views = append(views, order.NewView(o))
	}

	return views, nil
}

// MarkShipped moves a fulfilled order to shipped.
func (s *OrderService) MarkShipped(ctx context.Context, id string) (order.View, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.MarkShipped")
	defer span.End()

	var o order.Order
	err := s.tx.RunAtomic(ctx, func(ctx context.Context, w uow.Work) error {
		if err := w.OrderRepository().MarkShipped(ctx, id, s.now().UTC()); err != nil {
			return err
		}

		var err error
		o, err = w.OrderRepository().Get(ctx, id)

		return err
	})
	if err != nil {
		return order.View{}, err
	}

	slog.InfoContext(ctx, "Order shipped", "order_id", id)

	return order.NewView(o), nil
}

// AuditTrail returns the inventory entries caused by one order.
func (s *OrderService) AuditTrail(ctx context.Context, id string) ([]auditentry.Entry, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.AuditTrail")
	defer span.End()

	if _, err := s.tx.Read().OrderRepository().Get(ctx, id); err != nil {
		return nil, err
	}

	return s.tx.Read().AuditRepository().ListByOrder(ctx, id)
}
