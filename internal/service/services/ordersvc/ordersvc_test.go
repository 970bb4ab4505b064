package ordersvc_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/sqlite"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/fulfillmentsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/inventorysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	orders      *ordersvc.OrderService
	fulfillment *fulfillmentsvc.FulfillmentService
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	client, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	c := uow.NewCoordinator(client)
	inventory := inventorysvc.MustNewInventoryService(inventorysvc.WithCoordinator(c))
	_, err = inventory.CreateProduct(context.Background(), product.Product{ID: "P", Name: "P", UnitPriceCents: 100, Stock: 100})
	require.NoError(t, err)

	return fixture{
		orders:      ordersvc.MustNewOrderService(ordersvc.WithCoordinator(c)),
		fulfillment: fulfillmentsvc.MustNewFulfillmentService(fulfillmentsvc.WithCoordinator(c)),
	}
}

func (f fixture) place(t *testing.T, customer string, quantity int64) order.View {
	t.Helper()

	view, err := f.fulfillment.Fulfill(context.Background(), fulfillment.Request{
		CustomerID: customer,
		Lines:      []fulfillment.Line{{ProductID: "P", Quantity: quantity, UnitPriceCents: 100}},
	})
	require.NoError(t, err)

	return view
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t)
	placed := f.place(t, "cust", 3)

	got, err := f.orders.GetOrder(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ID, got.ID)
	assert.Equal(t, order.StatusFulfilled, got.Status)
	assert.Equal(t, int64(300), got.TotalCents)

	_, err = f.orders.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	for i := range 4 {
		f.place(t, fmt.Sprintf("cust%d", i%2), int64(i+1))
	}

	all, err := f.orders.ListOrders(context.Background(), order.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	mine, err := f.orders.ListOrders(context.Background(), order.Filter{CustomerIDs: []string{"cust1"}})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, v := range mine {
		assert.Equal(t, "cust1", v.CustomerID)
	}

	page, err := f.orders.ListOrders(context.Background(), order.Filter{Limit: 3, Offset: -5})
	require.NoError(t, err)
	assert.Len(t, page, 3)
}

func TestMarkShipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	placed := f.place(t, "cust", 1)

	shipped, err := f.orders.MarkShipped(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, shipped.Status)
	assert.NotNil(t, shipped.ShippedAt)

	_, err = f.orders.MarkShipped(ctx, placed.ID)
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	_, err = f.orders.MarkShipped(ctx, "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	placed := f.place(t, "cust", 7)

	entries, err := f.orders.AuditTrail(ctx, placed.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(-7), entries[0].Delta)
	assert.Equal(t, placed.ID, entries[0].OrderID)

	_, err = f.orders.AuditTrail(ctx, "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}
