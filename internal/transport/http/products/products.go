package products

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type service interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	GetStock(ctx context.Context, id string) (int64, error)
	Restock(ctx context.Context, id string, quantity int64) (int64, error)
	RestoreStock(ctx context.Context, id string, quantity int64) (int64, error)
	Reconcile(ctx context.Context, id string) (product.Reconciliation, error)
	LowStock(ctx context.Context) ([]product.Product, error)
	History(ctx context.Context, id string) ([]auditentry.Entry, error)
}

var validate = validator.New()

type createProductRequest struct {
	ID               string `json:"id"               validate:"required,max=128"`
	Name             string `json:"name"             validate:"required,max=256"`
	UnitPriceCents   int64  `json:"unitPriceCents"   validate:"gte=0"`
	Stock            int64  `json:"stock"            validate:"gte=0"`
	ReorderThreshold int64  `json:"reorderThreshold" validate:"gte=0"`
}

func (r *createProductRequest) toModel() product.Product {
	return product.Product{
		ID:               r.ID,
		Name:             r.Name,
		UnitPriceCents:   r.UnitPriceCents,
		Stock:            r.Stock,
		ReorderThreshold: r.ReorderThreshold,
	}
}

type quantityRequest struct {
	Quantity int64 `json:"quantity" validate:"gt=0"`
}

type stockResponse struct {
	ProductID string `json:"productId"`
	Stock     int64  `json:"stock"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "failed to decode request body")
		slog.Info("Error decoding request body", "path", r.URL.Path, "error", err)

		return false
	}

	if err := validate.Struct(dst); err != nil {
		response.BadRequest(w, err.Error())

		return false
	}

	return true
}

// CreateProduct handles POST /products.
func CreateProduct(w http.ResponseWriter, r *http.Request, service service) {
	req := &createProductRequest{}
	if !decode(w, r, req) {
		return
	}

	p, err := service.CreateProduct(r.Context(), req.toModel())
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusCreated, p)
}

// GetStock handles GET /products/{id}/stock.
func GetStock(w http.ResponseWriter, r *http.Request, service service) {
	id := chi.URLParam(r, "id")

	stock, err := service.GetStock(r.Context(), id)
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusOK, stockResponse{ProductID: id, Stock: stock})
}

// Restock handles POST /products/{id}/restock.
func Restock(w http.ResponseWriter, r *http.Request, service service) {
	changeStock(w, r, service.Restock)
}

// Adjust handles POST /products/{id}/adjust.
func Adjust(w http.ResponseWriter, r *http.Request, service service) {
	changeStock(w, r, service.RestoreStock)
}

func changeStock(
	w http.ResponseWriter,
	r *http.Request,
	change func(ctx context.Context, id string, quantity int64) (int64, error),
) {
	req := &quantityRequest{}
	if !decode(w, r, req) {
		return
	}

	id := chi.URLParam(r, "id")

	stock, err := change(r.Context(), id, req.Quantity)
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusOK, stockResponse{ProductID: id, Stock: stock})
}

// Reconcile handles GET /products/{id}/reconcile.
func Reconcile(w http.ResponseWriter, r *http.Request, service service) {
	rec, err := service.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusOK, rec)
}

// LowStock handles GET /products/low-stock.
func LowStock(w http.ResponseWriter, r *http.Request, service service) {
	list, err := service.LowStock(r.Context())
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusOK, list)
}

// History handles GET /products/{id}/audit.
func History(w http.ResponseWriter, r *http.Request, service service) {
	entries, err := service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, err)

		return
	}

	response.JSON(w, http.StatusOK, entries)
}
