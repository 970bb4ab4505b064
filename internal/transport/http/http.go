package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	createorder "github.com/corray333/backend-labs/fulfillment/internal/transport/http/create_order"
	getorder "github.com/corray333/backend-labs/fulfillment/internal/transport/http/get_order"
	listorders "github.com/corray333/backend-labs/fulfillment/internal/transport/http/list_orders"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/products"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/response"
	shiporder "github.com/corray333/backend-labs/fulfillment/internal/transport/http/ship_order"
	"github.com/corray333/backend-labs/fulfillment/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/fulfillment/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type fulfillmentService interface {
	Fulfill(ctx context.Context, req fulfillment.Request) (order.View, error)
}

type orderService interface {
	GetOrder(ctx context.Context, id string) (order.View, error)
	ListOrders(ctx context.Context, filter order.Filter) ([]order.View, error)
	MarkShipped(ctx context.Context, id string) (order.View, error)
	AuditTrail(ctx context.Context, id string) ([]auditentry.Entry, error)
}

type inventoryService interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	GetStock(ctx context.Context, id string) (int64, error)
	Restock(ctx context.Context, id string, quantity int64) (int64, error)
	RestoreStock(ctx context.Context, id string, quantity int64) (int64, error)
	Reconcile(ctx context.Context, id string) (product.Reconciliation, error)
	LowStock(ctx context.Context) ([]product.Product, error)
	History(ctx context.Context, id string) ([]auditentry.Entry, error)
}

type idempotencyStore interface {
	Claim(ctx context.Context, key string) (string, bool, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

type HTTPTransport struct {
	server      *http.Server
	router      *chi.Mux
	fulfillment fulfillmentService
	orders      orderService
	inventory   inventoryService
	idempotency idempotencyStore
}

// option is a function that configures the HTTPTransport.
type option func(*HTTPTransport)

// WithIdempotencyStore enables Idempotency-Key handling on order creation.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithIdempotencyStore(store idempotencyStore) option {
	return func(h *HTTPTransport) {
		h.idempotency = store
	}
}

func NewHTTPTransport(
	cfg config.HTTPConfig,
	serviceName string,
	fulfillmentSvc fulfillmentService,
	orders orderService,
	inventory inventoryService,
	opts ...option,
) *HTTPTransport {
	router := newRouter(cfg.CORS, serviceName)
	server := newServer(cfg.Port, router)
	h := &HTTPTransport{
		server:      server,
		router:      router,
		fulfillment: fulfillmentSvc,
		orders:      orders,
		inventory:   inventory,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Handler returns the router, for tests and embedding.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	h.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.Get("/{id}/audit", h.getAuditTrail)
			r.Post("/{id}/ship", h.shipOrder)
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.createProduct)
			r.Get("/low-stock", h.lowStock)
			r.Get("/{id}/stock", h.getStock)
			r.Post("/{id}/restock", h.restock)
			r.Post("/{id}/adjust", h.adjust)
			r.Get("/{id}/reconcile", h.reconcile)
			r.Get("/{id}/audit", h.history)
		})
	})
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreateOrder(w, r, h.fulfillment, h.idempotency)
}

func (h *HTTPTransport) listOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListOrders(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) getAuditTrail(w http.ResponseWriter, r *http.Request) {
	getorder.GetAuditTrail(w, r, h.orders)
}

func (h *HTTPTransport) shipOrder(w http.ResponseWriter, r *http.Request) {
	shiporder.ShipOrder(w, r, h.orders)
}

func (h *HTTPTransport) createProduct(w http.ResponseWriter, r *http.Request) {
	products.CreateProduct(w, r, h.inventory)
}

func (h *HTTPTransport) lowStock(w http.ResponseWriter, r *http.Request) {
	products.LowStock(w, r, h.inventory)
}

func (h *HTTPTransport) getStock(w http.ResponseWriter, r *http.Request) {
	products.GetStock(w, r, h.inventory)
}

func (h *HTTPTransport) restock(w http.ResponseWriter, r *http.Request) {
	products.Restock(w, r, h.inventory)
}

func (h *HTTPTransport) adjust(w http.ResponseWriter, r *http.Request) {
	products.Adjust(w, r, h.inventory)
}

func (h *HTTPTransport) reconcile(w http.ResponseWriter, r *http.Request) {
	products.Reconcile(w, r, h.inventory)
}

func (h *HTTPTransport) history(w http.ResponseWriter, r *http.Request) {
	products.History(w, r, h.inventory)
}

func newRouter(cfg config.CORSConfig, serviceName string) *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(trace.NewTraceMiddleware(serviceName))
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(port string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
