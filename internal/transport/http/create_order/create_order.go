package createorder

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	idempotencyrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/idempotency"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/response"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// IdempotencyHeader carries the client-supplied deduplication token.
const IdempotencyHeader = "Idempotency-Key"

// service is an interface for the service layer.
type service interface {
	Fulfill(ctx context.Context, req fulfillment.Request) (order.View, error)
}

// idempotencyStore is satisfied by the Redis-backed key store.
type idempotencyStore interface {
	Claim(ctx context.Context, key string) (string, bool, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

// lineInCreateOrderRequest represents a line in a create order request.
// Quantity and discount are checked by the service so failures carry a line index.
type lineInCreateOrderRequest struct {
	ProductID      string          `json:"productId"`
	Quantity       int64           `json:"quantity"`
	UnitPriceCents int64           `json:"unitPriceCents"`
	Discount       decimal.Decimal `json:"discount"`
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	CustomerID      string                     `json:"customerId"      validate:"required,max=128"`
	ShippingAddress string                     `json:"shippingAddress" validate:"max=512"`
	FreightCents    int64                      `json:"freightCents"`
	Lines           []lineInCreateOrderRequest `json:"lines"           validate:"required,max=1000"`
}

// Validate validates the create order request.
func (r *createOrderRequest) Validate() error {
	validate := validator.New()

	return validate.Struct(r)
}

func (r *createOrderRequest) toModel() fulfillment.Request {
	lines := make([]fulfillment.Line, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = fulfillment.Line{
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
			Discount:       l.Discount,
		}
	}

	return fulfillment.Request{
		CustomerID:      r.CustomerID,
		ShippingAddress: r.ShippingAddress,
		FreightCents:    r.FreightCents,
		Lines:           lines,
	}
}

type createOrderResponse struct {
	OrderID  string      `json:"orderId"`
	Replayed bool        `json:"replayed,omitempty"`
	Order    *order.View `json:"order,omitempty"`
}

// CreateOrder handles POST /orders. store may be nil when idempotency keys are disabled.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service, store idempotencyStore) {
	req := &createOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		response.BadRequest(w, "failed to decode request body")
		slog.Error("Error decoding request body for create order", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		response.BadRequest(w, err.Error())
		slog.Info("Invalid create order request", "error", err)

		return
	}

	key := r.Header.Get(IdempotencyHeader)
	if store == nil {
		key = ""
	}

	if key != "" {
		orderID, claimed, err := store.Claim(r.Context(), key)
		switch {
		case errors.Is(err, idempotencyrepo.ErrInFlight):
			response.JSON(w, http.StatusConflict, response.ErrorBody{Error: err.Error()})

			return
		case err != nil:
			response.Error(w, r, err)

			return
		case !claimed:
			response.JSON(w, http.StatusOK, createOrderResponse{OrderID: orderID, Replayed: true})

			return
		}
	}

	view, err := service.Fulfill(r.Context(), req.toModel())
	if err != nil {
		if key != "" {
			if relErr := store.Release(context.WithoutCancel(r.Context()), key); relErr != nil {
				slog.Error("Error releasing idempotency key", "error", relErr)
			}
		}
		response.Error(w, r, err)

		return
	}

	if key != "" {
		if err := store.Complete(context.WithoutCancel(r.Context()), key, view.ID); err != nil {
			slog.Error("Error completing idempotency key", "order_id", view.ID, "error", err)
		}
	}

	response.JSON(w, http.StatusCreated, createOrderResponse{OrderID: view.ID, Order: &view})
}
