package productrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/jmoiron/sqlx"
)

// ProductDal represents product data access layer model.
type ProductDal struct {
	Id               string    `db:"id"`
	Name             string    `db:"name"`
	UnitPriceCents   int64     `db:"unit_price_cents"`
	Stock            int64     `db:"stock"`
	InitialStock     int64     `db:"initial_stock"`
	ReorderThreshold int64     `db:"reorder_threshold"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// ToModel converts ProductDal to service layer Product model.
func (p *ProductDal) ToModel() product.Product {
	return product.Product{
		ID:               p.Id,
		Name:             p.Name,
		UnitPriceCents:   p.UnitPriceCents,
		Stock:            p.Stock,
		InitialStock:     p.InitialStock,
		ReorderThreshold: p.ReorderThreshold,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

var productColumns = []string{
	"id",
	"name",
	"unit_price_cents",
	"stock",
	"initial_stock",
	"reorder_threshold",
	"created_at",
	"updated_at",
}

// ProductRepository is the SQL inventory store. It runs on either a pool or a transaction.
type ProductRepository struct {
	conn sqlx.ExtContext
}

// NewProductRepository creates a new product repository.
func NewProductRepository(conn sqlx.ExtContext) *ProductRepository {
	return &ProductRepository{
		conn: conn,
	}
}

// Create inserts a new product with stock == initial stock.
func (r *ProductRepository) Create(ctx context.Context, p product.Product) error {
	query, args, err := sq.Insert("products").
		Columns(productColumns...).
		Values(
			p.ID,
			p.Name,
			p.UnitPriceCents,
			p.Stock,
			p.InitialStock,
			p.ReorderThreshold,
			p.CreatedAt.UTC(),
			p.UpdatedAt.UTC(),
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	res, err := r.conn.ExecContext(ctx, r.conn.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return product.ErrAlreadyExists
	}

	return nil
}

// Get returns a product by id.
func (r *ProductRepository) Get(ctx context.Context, id string) (product.Product, error) {
	query, args, err := sq.Select(productColumns...).
		From("products").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return product.Product{}, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal ProductDal
	err = sqlx.GetContext(ctx, r.conn, &dal, r.conn.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return product.Product{}, product.ErrNotFound
	}
	if err != nil {
		return product.Product{}, fmt.Errorf("failed to get product: %w", err)
	}

	return dal.ToModel(), nil
}

// GetByIDs returns every product whose id is in ids. Unknown ids are skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if len(ids) == 0 {
		return []product.Product{}, nil
	}

	query, args, err := sq.Select(productColumns...).
		From("products").
		Where(sq.Eq{"id": ids}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	return r.selectProducts(ctx, query, args)
}

// GetStock returns the current stock of a product.
func (r *ProductRepository) GetStock(ctx context.Context, id string) (int64, error) {
	query, args, err := sq.Select("stock").
		From("products").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build select query: %w", err)
	}

	var stock int64
	err = sqlx.GetContext(ctx, r.conn, &stock, r.conn.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, product.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get stock: %w", err)
	}

	return stock, nil
}

// reserveAttempts bounds how often Reserve re-runs the conditional UPDATE when
// the follow-up read shows enough stock after all.
const reserveAttempts = 4

// Reserve atomically decrements stock by quantity when at least quantity is available.
// The check and the decrement are one conditional UPDATE. A refused UPDATE is
// followed by a read of the current stock; when that read already sees enough
// stock a concurrent increment committed in between, and the UPDATE is retried
// so the returned InsufficientStockError never reports available >= requested.
func (r *ProductRepository) Reserve(ctx context.Context, id string, quantity int64) (int64, error) {
	query, args, err := sq.Update("products").
		Set("stock", sq.Expr("stock - ?", quantity)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Where(sq.GtOrEq{"stock": quantity}).
		Suffix("RETURNING stock").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build reserve query: %w", err)
	}
	query = r.conn.Rebind(query)

	for range reserveAttempts {
		var remaining int64
		err := sqlx.GetContext(ctx, r.conn, &remaining, query, args...)
		if err == nil {
			return remaining, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("failed to reserve stock: %w", err)
		}

		available, err := r.GetStock(ctx, id)
		if err != nil {
			return 0, err
		}
		if available < quantity {
			return 0, &product.InsufficientStockError{
				ProductID: id,
				Available: available,
				Requested: quantity,
			}
		}
	}

	return 0, fmt.Errorf("failed to reserve %d of %s: %w", quantity, id, product.ErrStockChanged)
}

// Reconcile reads the seed, the stored stock and the ledger sum of a product in
// a single statement, so all three come from one snapshot.
func (r *ProductRepository) Reconcile(ctx context.Context, id string) (product.Reconciliation, error) {
	query, args, err := sq.Select(
		"p.initial_stock",
		"p.stock",
		"CAST(COALESCE((SELECT SUM(a.delta) FROM inventory_audit a WHERE a.product_id = p.id), 0) AS BIGINT) AS delta_sum",
	).
		From("products p").
		Where(sq.Eq{"p.id": id}).
		ToSql()
	if err != nil {
		return product.Reconciliation{}, fmt.Errorf("failed to build reconcile query: %w", err)
	}

	var row struct {
		InitialStock int64 `db:"initial_stock"`
		Stock        int64 `db:"stock"`
		DeltaSum     int64 `db:"delta_sum"`
	}
	err = sqlx.GetContext(ctx, r.conn, &row, r.conn.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return product.Reconciliation{}, product.ErrNotFound
	}
	if err != nil {
		return product.Reconciliation{}, fmt.Errorf("failed to reconcile stock: %w", err)
	}

	return product.NewReconciliation(id, row.InitialStock, row.DeltaSum, row.Stock), nil
}

// Increment adds quantity to the stock of a product.
func (r *ProductRepository) Increment(ctx context.Context, id string, quantity int64) (int64, error) {
	query, args, err := sq.Update("products").
		Set("stock", sq.Expr("stock + ?", quantity)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING stock").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build increment query: %w", err)
	}

	var stock int64
	err = sqlx.GetContext(ctx, r.conn, &stock, r.conn.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, product.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment stock: %w", err)
	}

	return stock, nil
}

// ListLowStock returns products whose stock has reached the reorder threshold.
func (r *ProductRepository) ListLowStock(ctx context.Context) ([]product.Product, error) {
	query, args, err := sq.Select(productColumns...).
		From("products").
		Where("stock <= reorder_threshold").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	return r.selectProducts(ctx, query, args)
}

func (r *ProductRepository) selectProducts(ctx context.Context, query string, args []any) ([]product.Product, error) {
	var dals []ProductDal
	if err := sqlx.SelectContext(ctx, r.conn, &dals, r.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	result := make([]product.Product, 0, len(dals))
	for i := range dals {
		result = append(result, dals[i].ToModel())
	}

	return result, nil
}
