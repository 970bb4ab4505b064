package httptransport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	idempotencyrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/idempotency"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/sqlite"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/fulfillmentsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/inventorysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	httptransport "github.com/corray333/backend-labs/fulfillment/internal/transport/http"
	"github.com/corray333/backend-labs/fulfillment/internal/transport/http/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-process idempotency store.
type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: make(map[string]string)}
}

func (m *memoryStore) Claim(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.keys[key]
	switch {
	case !ok:
		m.keys[key] = ""
		return "", true, nil
	case v == "":
		return "", false, idempotencyrepo.ErrInFlight
	default:
		return v, false, nil
	}
}

func (m *memoryStore) Complete(_ context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys[key] = orderID

	return nil
}

func (m *memoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys[key] == "" {
		delete(m.keys, key)
	}

	return nil
}

type server struct {
	handler http.Handler
	store   *memoryStore
}

func newServer(t *testing.T) server {
	t.Helper()

	client, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	c := uow.NewCoordinator(client)
	store := newMemoryStore()
	transport := httptransport.NewHTTPTransport(
		config.HTTPConfig{Port: "0"},
		"fulfillment-test",
		fulfillmentsvc.MustNewFulfillmentService(fulfillmentsvc.WithCoordinator(c)),
		ordersvc.MustNewOrderService(ordersvc.WithCoordinator(c)),
		inventorysvc.MustNewInventoryService(inventorysvc.WithCoordinator(c)),
		httptransport.WithIdempotencyStore(store),
	)
	transport.RegisterRoutes()

	return server{handler: transport.Handler(), store: store}
}

func (s server) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

type createOrderResponse struct {
	OrderID  string      `json:"orderId"`
	Replayed bool        `json:"replayed"`
	Order    *order.View `json:"order"`
}

func TestHealthz(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestOrderLifecycle(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/products", `{"id":"P","name":"Widget","unitPriceCents":250,"stock":10,"reorderThreshold":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/orders",
		`{"customerId":"cust1","freightCents":100,"lines":[{"productId":"P","quantity":5,"unitPriceCents":250,"discount":"0.2"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[createOrderResponse](t, rec)
	require.NotNil(t, created.Order)
	assert.Equal(t, created.OrderID, created.Order.ID)
	assert.Equal(t, order.StatusFulfilled, created.Order.Status)
	assert.Equal(t, int64(1000+100), created.Order.TotalCents)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+created.OrderID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.OrderID, decode[order.View](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/api/v1/orders?customerId=cust1&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]order.View](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/api/v1/orders?status=shipped", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]order.View](t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/orders?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+created.OrderID+"/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	trail := decode[[]auditentry.Entry](t, rec)
	require.Len(t, trail, 1)
	assert.Equal(t, int64(-5), trail[0].Delta)

	rec = s.do(t, http.MethodPost, "/api/v1/orders/"+created.OrderID+"/ship", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.StatusShipped, decode[order.View](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/api/v1/orders/"+created.OrderID+"/ship", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateOrder_Errors(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/products", `{"id":"P","name":"Widget","stock":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/orders", `{"customerId":"cust1","lines":[{"productId":"P","quantity":5}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("insufficient stock", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/orders", `{"customerId":"cust2","lines":[{"productId":"P","quantity":8}]}`)
		require.Equal(t, http.StatusConflict, rec.Code)

		body := decode[response.ErrorBody](t, rec)
		assert.Equal(t, "insufficient_stock", body.Kind)
		assert.Equal(t, "P", body.ProductID)
		require.NotNil(t, body.Available)
		require.NotNil(t, body.Requested)
		assert.Equal(t, int64(5), *body.Available)
		assert.Equal(t, int64(8), *body.Requested)
		require.NotNil(t, body.Line)
		assert.Equal(t, 0, *body.Line)
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/orders",
			`{"customerId":"cust2","lines":[{"productId":"P","quantity":1},{"productId":"ghost","quantity":1}]}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decode[response.ErrorBody](t, rec)
		assert.Equal(t, "validation", body.Kind)
		assert.Equal(t, "ghost", body.ProductID)
		require.NotNil(t, body.Line)
		assert.Equal(t, 1, *body.Line)
	})

	t.Run("missing customer", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/orders", `{"lines":[{"productId":"P","quantity":1}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/v1/orders", `{"customerId":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec = s.do(t, http.MethodGet, "/api/v1/products/P/stock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"productId":"P","stock":5}`, rec.Body.String())
}

func TestCreateOrder_IdempotencyKey(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/products", `{"id":"P","name":"Widget","stock":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := `{"customerId":"cust1","lines":[{"productId":"P","quantity":2}]}`

	rec = s.do(t, http.MethodPost, "/api/v1/orders", body, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[createOrderResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/api/v1/orders", body, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, rec.Code)
	replay := decode[createOrderResponse](t, rec)
	assert.True(t, replay.Replayed)
	assert.Equal(t, first.OrderID, replay.OrderID)

	rec = s.do(t, http.MethodGet, "/api/v1/products/P/stock", "")
	assert.JSONEq(t, `{"productId":"P","stock":8}`, rec.Body.String())

	// a failed attempt releases its key
	failing := `{"customerId":"cust1","lines":[{"productId":"P","quantity":50}]}`
	rec = s.do(t, http.MethodPost, "/api/v1/orders", failing, "Idempotency-Key", "k2")
	require.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/orders", failing, "Idempotency-Key", "k2")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "insufficient_stock", decode[response.ErrorBody](t, rec).Kind)

	_, _, err := s.store.Claim(context.Background(), "k3")
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/api/v1/orders", body, "Idempotency-Key", "k3")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProductEndpoints(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/products", `{"id":"P","name":"Widget","stock":1,"reorderThreshold":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[product.Product](t, rec)
	assert.Equal(t, int64(1), created.InitialStock)

	rec = s.do(t, http.MethodPost, "/api/v1/products", `{"id":"P","name":"Widget"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/products", `{"id":"Q","name":"Widget","stock":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/products/low-stock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	low := decode[[]product.Product](t, rec)
	require.Len(t, low, 1)
	assert.Equal(t, "P", low[0].ID)

	rec = s.do(t, http.MethodPost, "/api/v1/products/P/restock", `{"quantity":9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"productId":"P","stock":10}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/products/P/adjust", `{"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"productId":"P","stock":12}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/products/P/restock", `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/products/missing/restock", `{"quantity":1}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/products/P/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec2 := decode[product.Reconciliation](t, rec)
	assert.True(t, rec2.Balanced)
	assert.Equal(t, int64(11), rec2.DeltaSum)

	rec = s.do(t, http.MethodGet, "/api/v1/products/P/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]auditentry.Entry](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/api/v1/products/missing/stock", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
