package uow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iauditrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/interfaces/iproductrepo"
	auditrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/audit"
	orderrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/order"
	outboxrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/outbox"
	productrepo "github.com/corray333/backend-labs/fulfillment/internal/dal/repositories/product"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/jmoiron/sqlx"
)

// ErrConflict marks a transaction that lost a race with a concurrent one and
// can be retried from scratch.
var ErrConflict = errors.New("transaction conflict")

// Database is the storage engine a Coordinator runs on.
type Database interface {
	DB() *sqlx.DB
	TxOptions() *sql.TxOptions
	IsConflict(err error) bool
}

// Work exposes the repositories bound to one unit of work.
type Work interface {
	ProductRepository() iproductrepo.IProductRepository
	OrderRepository() iorderrepo.IOrderRepository
	AuditRepository() iauditrepo.IAuditRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

type unitOfWork struct {
	db          *sqlx.DB
	tx          *sqlx.Tx
	opts        *sql.TxOptions
	productRepo iproductrepo.IProductRepository
	orderRepo   iorderrepo.IOrderRepository
	auditRepo   iauditrepo.IAuditRepository
	outboxRepo  ioutboxrepo.IOutboxRepository
}

func (u *unitOfWork) ProductRepository() iproductrepo.IProductRepository {
	return u.productRepo
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) AuditRepository() iauditrepo.IAuditRepository {
	return u.auditRepo
}

func (u *unitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func newUnitOfWork(db *sqlx.DB, opts *sql.TxOptions) *unitOfWork {
	u := &unitOfWork{db: db, opts: opts}
	u.bind(db)

	return u
}

func (u *unitOfWork) bind(conn sqlx.ExtContext) {
	u.productRepo = productrepo.NewProductRepository(conn)
	u.orderRepo = orderrepo.NewOrderRepository(conn)
	u.auditRepo = auditrepo.NewAuditRepository(conn)
	u.outboxRepo = outboxrepo.NewOutboxRepository(conn)
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.db.BeginTxx(ctx, u.opts)
	if err != nil {
		return err
	}

	u.tx = tx
	// Rebind repositories to the transaction
	u.bind(tx)

	return nil
}

func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return nil
	}
	return u.tx.Commit()
}

func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Coordinator runs units of work against a Database.
type Coordinator struct {
	db Database
}

// NewCoordinator creates a coordinator on top of db.
func NewCoordinator(db Database) *Coordinator {
	return &Coordinator{db: db}
}

// Read returns repositories that run outside any transaction.
func (c *Coordinator) Read() Work {
	return newUnitOfWork(c.db.DB(), nil)
}

// RunAtomic runs fn inside one transaction. The transaction commits only when fn
// returns nil; any error or panic rolls it back. Errors the engine reports as a
// lost race, and reservations that saw stock keep moving, are wrapped with ErrConflict.
func (c *Coordinator) RunAtomic(ctx context.Context, fn func(ctx context.Context, w Work) error) (err error) {
	u := newUnitOfWork(c.db.DB(), c.db.TxOptions())
	if err := u.Begin(ctx); err != nil {
		return c.wrap("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = u.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := u.Rollback(); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
			}
		}
	}()

	if err := fn(ctx, u); err != nil {
		if c.db.IsConflict(err) || errors.Is(err, product.ErrStockChanged) {
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return err
	}

	if err := u.Commit(); err != nil {
		return c.wrap("failed to commit transaction", err)
	}

	return nil
}

func (c *Coordinator) wrap(msg string, err error) error {
	if c.db.IsConflict(err) {
		return fmt.Errorf("%w: %s: %w", ErrConflict, msg, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}
