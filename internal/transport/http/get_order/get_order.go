package getorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
)

type service interface {
	GetOrder(ctx context.Context, id string) (order.View, error)
	AuditTrail(ctx context.Context, id string) ([]auditentry.Entry, error)
}

// GetOrder handles GET /orders/{id}.
func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	view, err := service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusOK, view)
}

// GetAuditTrail handles GET /orders/{id}/audit.
func GetAuditTrail(w http.ResponseWriter, r *http.Request, service service) {
	entries, err := service.AuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusOK, entries)
}
