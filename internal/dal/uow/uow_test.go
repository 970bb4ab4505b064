package uow_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/sqlite"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/uow"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/auditentry"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLostRace = errors.New("lost race")

// racyDatabase reports errLostRace as a conflict.
type racyDatabase struct {
	*sqlite.Client
}

func (racyDatabase) IsConflict(err error) bool {
	return errors.Is(err, errLostRace)
}

func newCoordinator(t *testing.T) *uow.Coordinator {
	t.Helper()

	client, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), true)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	c := uow.NewCoordinator(racyDatabase{client})

	now := time.Now()
	require.NoError(t, c.Read().ProductRepository().Create(context.Background(), product.Product{
		ID:           "P",
		Name:         "P",
		Stock:        10,
		InitialStock: 10,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))

	return c
}

func stockOf(t *testing.T, c *uow.Coordinator) int64 {
	t.Helper()

	stock, err := c.Read().ProductRepository().GetStock(context.Background(), "P")
	require.NoError(t, err)

	return stock
}

func reserveAndRecord(ctx context.Context, w uow.Work) error {
	if _, err := w.ProductRepository().Reserve(ctx, "P", 4); err != nil {
		return err
	}

	return w.AuditRepository().Record(ctx, auditentry.Entry{
		ProductID: "P",
		Delta:     -4,
		Reason:    auditentry.ReasonAdjustment,
	})
}

func TestRunAtomic_Commit(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t)

	require.NoError(t, c.RunAtomic(ctx, reserveAndRecord))

	assert.Equal(t, int64(6), stockOf(t, c))
	sum, err := c.Read().AuditRepository().SumDeltas(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int64(-4), sum)
}

func TestRunAtomic_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t)
	boom := errors.New("boom")

	err := c.RunAtomic(ctx, func(ctx context.Context, w uow.Work) error {
		if err := reserveAndRecord(ctx, w); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, uow.ErrConflict)

	assert.Equal(t, int64(10), stockOf(t, c))
	entries, err := c.Read().AuditRepository().ListByProduct(ctx, "P")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunAtomic_RollbackOnPanic(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = c.RunAtomic(ctx, func(ctx context.Context, w uow.Work) error {
			if err := reserveAndRecord(ctx, w); err != nil {
				return err
			}
			panic("kaboom")
		})
	})

	assert.Equal(t, int64(10), stockOf(t, c))
}

func TestRunAtomic_WrapsConflicts(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t)

	err := c.RunAtomic(ctx, func(ctx context.Context, w uow.Work) error {
		if err := reserveAndRecord(ctx, w); err != nil {
			return err
		}
		return errLostRace
	})
	require.ErrorIs(t, err, uow.ErrConflict)
	assert.ErrorIs(t, err, errLostRace)

	assert.Equal(t, int64(10), stockOf(t, c))
}

func TestRunAtomic_StockChangedIsConflict(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t)

	err := c.RunAtomic(ctx, func(ctx context.Context, w uow.Work) error {
		if err := reserveAndRecord(ctx, w); err != nil {
			return err
		}
		return fmt.Errorf("failed to reserve: %w", product.ErrStockChanged)
	})
	require.ErrorIs(t, err, uow.ErrConflict)
	assert.ErrorIs(t, err, product.ErrStockChanged)

	assert.Equal(t, int64(10), stockOf(t, c))
}

func TestRunAtomic_DomainErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t)

	err := c.RunAtomic(ctx, func(ctx context.Context, w uow.Work) error {
		_, err := w.ProductRepository().Reserve(ctx, "P", 11)
		return err
	})

	var stockErr *product.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(10), stockErr.Available)
	assert.Equal(t, int64(11), stockErr.Requested)
}
