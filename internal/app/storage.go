package app

import (
	"context"
	"fmt"

	"github.com/corray333/backend-labs/fulfillment/internal/config"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/sqlite"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/fulfillmentsvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/inventorysvc"
	"github.com/corray333/backend-labs/fulfillment/internal/service/services/ordersvc"
)

// Storage is a transactional engine the services run on.
type Storage interface {
	uow.Database
	Migrate() error
	Close()
}

// OpenStorage connects to the configured storage driver.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		client, err := postgres.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}

		return client, nil
	case config.DriverSQLite:
		client, err := sqlite.NewClient(cfg)
		if err != nil {
			return nil, err
		}

		return client, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Core holds the storage and services shared by the server and the CLI.
type Core struct {
	Store       Storage
	Coordinator *uow.Coordinator
	Fulfillment *fulfillmentsvc.FulfillmentService
	Orders      *ordersvc.OrderService
	Inventory   *inventorysvc.InventoryService
}

// NewCore opens storage and wires the services on top of it.
func NewCore(ctx context.Context, cfg *config.Config) (*Core, error) {
	store, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	return NewCoreWithStorage(store, cfg), nil
}

// NewCoreWithStorage wires the services on an already opened store.
func NewCoreWithStorage(store Storage, cfg *config.Config) *Core {
	coord := uow.NewCoordinator(store)

	fulfillmentSvc := fulfillmentsvc.MustNewFulfillmentService(
		fulfillmentsvc.WithCoordinator(coord),
		fulfillmentsvc.WithMaxAttempts(cfg.Fulfillment.MaxAttempts),
		fulfillmentsvc.WithTimeout(cfg.Fulfillment.Timeout),
		fulfillmentsvc.WithRetryBackoff(cfg.Fulfillment.RetryBackoff),
		fulfillmentsvc.WithOutbox(cfg.Events.Broker != config.BrokerNone, cfg.Events.Outbox.MaxRetries),
	)

	return &Core{
		Store:       store,
		Coordinator: coord,
		Fulfillment: fulfillmentSvc,
		Orders:      ordersvc.MustNewOrderService(ordersvc.WithCoordinator(coord)),
		Inventory:   inventorysvc.MustNewInventoryService(inventorysvc.WithCoordinator(coord)),
	}
}

// Close releases the storage.
func (c *Core) Close() {
	c.Store.Close()
}
