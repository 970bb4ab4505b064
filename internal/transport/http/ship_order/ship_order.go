package shiporder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
)

type service interface {
	MarkShipped(ctx context.Context, id string) (order.View, error)
}

// ShipOrder handles POST /orders/{id}/ship.
func ShipOrder(w http.ResponseWriter, r *http.Request, service service) {
	view, err := service.MarkShipped(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusOK, view)
}
