package listorders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/response"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

type service interface {
	ListOrders(ctx context.Context, filter order.Filter) ([]order.View, error)
}

// listParams is the query string of GET /orders, e.g.
// ?customerId=c1&customerId=c2&status=fulfilled&limit=20.
type listParams struct {
	IDs         []string `schema:"id"`
	CustomerIDs []string `schema:"customerId"`
	Statuses    []string `schema:"status" validate:"dive,oneof=pending fulfilled shipped"`
	Limit       int      `schema:"limit" validate:"gte=0"`
	Offset      int      `schema:"offset" validate:"gte=0"`
}

func (p listParams) filter() order.Filter {
	statuses := make([]order.Status, 0, len(p.Statuses))
	for _, st := range p.Statuses {
		statuses = append(statuses, order.Status(st))
	}

	return order.Filter{
		IDs:         p.IDs,
		CustomerIDs: p.CustomerIDs,
		Statuses:    statuses,
		Limit:       p.Limit,
		Offset:      p.Offset,
	}
}

var (
	decoder  = schema.NewDecoder()
	validate = validator.New()
)

func init() {
	decoder.IgnoreUnknownKeys(true)
}

// ListOrders handles GET /orders.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	var params listParams
	if err := decoder.Decode(&params, r.URL.Query()); err != nil {
		slog.Debug("Bad order listing query", "query", r.URL.RawQuery, "error", err)
		response.BadRequest(w, err.Error())

		return
	}
	if err := validate.Struct(params); err != nil {
		response.BadRequest(w, err.Error())

		return
	}

	orders, err := service.ListOrders(r.Context(), params.filter())
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusOK, orders)
}
