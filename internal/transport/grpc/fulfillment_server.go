package grpctransport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FulfillmentServer implements FulfillmentServiceServer.
type FulfillmentServer struct {
	fulfillment fulfillmentService
	orders      orderService
	inventory   inventoryService
}

// NewFulfillmentServer creates a new FulfillmentServer.
func NewFulfillmentServer(
	fulfillmentSvc fulfillmentService,
	orders orderService,
	inventory inventoryService,
) *FulfillmentServer {
	return &FulfillmentServer{
		fulfillment: fulfillmentSvc,
		orders:      orders,
		inventory:   inventory,
	}
}

// FulfillOrder handles the fulfill order gRPC request.
func (s *FulfillmentServer) FulfillOrder(
	ctx context.Context,
	req *fulfillment.Request,
) (*FulfillOrderResponse, error) {
	slog.Info("Received FulfillOrder gRPC request",
		"customer_id", req.CustomerID,
		"lines", len(req.Lines))

	view, err := s.fulfillment.Fulfill(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}

	return &FulfillOrderResponse{OrderID: view.ID, Order: view}, nil
}

// GetOrder handles the get order gRPC request.
func (s *FulfillmentServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*order.View, error) {
	view, err := s.orders.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &view, nil
}

// Reconcile handles the reconcile gRPC request.
func (s *FulfillmentServer) Reconcile(
	ctx context.Context,
	req *ReconcileRequest,
) (*product.Reconciliation, error) {
	rec, err := s.inventory.Reconcile(ctx, req.ProductID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &rec, nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	code := codes.Internal

	switch fulfillment.KindOf(err) {
	case fulfillment.KindValidation:
		code = codes.InvalidArgument
	case fulfillment.KindInsufficientStock:
		code = codes.FailedPrecondition
	case fulfillment.KindContention:
		code = codes.Aborted
	case fulfillment.KindTimeout:
		code = codes.DeadlineExceeded
	case fulfillment.KindStorage:
		code = codes.Internal
	default:
		switch {
		case errors.Is(err, product.ErrNotFound), errors.Is(err, order.ErrNotFound):
			code = codes.NotFound
		case errors.Is(err, product.ErrInvalid):
			code = codes.InvalidArgument
		case errors.Is(err, uow.ErrConflict):
			code = codes.Aborted
		case errors.Is(err, context.DeadlineExceeded):
			code = codes.DeadlineExceeded
		}
	}

	if code == codes.Internal {
		slog.Error("gRPC request failed", "error", err)
	}

	return status.Error(code, err.Error())
}
