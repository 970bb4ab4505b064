package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Storage: config.StorageConfig{
			Driver:  config.DriverSQLite,
			Migrate: true,
			SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "app.db")},
		},
		Fulfillment: config.FulfillmentConfig{MaxAttempts: 3, Timeout: 5 * time.Second},
		Server: config.ServerConfig{
			HTTP: config.HTTPConfig{Port: "0"},
		},
		Events:  config.EventsConfig{Broker: config.BrokerNone},
		Tracing: config.TracingConfig{Exporter: config.ExporterNone, ServiceName: "fulfillment-test"},
	}
}

func TestOpenStorage_UnknownDriver(t *testing.T) {
	_, err := OpenStorage(context.Background(), config.StorageConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestNewCore(t *testing.T) {
	ctx := context.Background()
	core, err := NewCore(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(core.Close)

	_, err = core.Inventory.CreateProduct(ctx, product.Product{ID: "P", Name: "P", Stock: 3})
	require.NoError(t, err)

	view, err := core.Fulfillment.Fulfill(ctx, fulfillment.Request{
		CustomerID: "cust",
		Lines:      []fulfillment.Line{{ProductID: "P", Quantity: 3}},
	})
	require.NoError(t, err)

	got, err := core.Orders.GetOrder(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)

	// no broker configured, so nothing is queued
	pending, err := core.Coordinator.Read().OutboxRepository().ListDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAppRunStopsWithContext(t *testing.T) {
	a, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.Nil(t, a.grpcTransport)
	assert.Nil(t, a.worker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
}
