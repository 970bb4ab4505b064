package orderrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/fulfillment"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderline"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// OrderDal represents order data access layer model
type OrderDal struct {
	Id              string       `db:"id"`
	CustomerId      string       `db:"customer_id"`
	Status          string       `db:"status"`
	ShippingAddress string       `db:"shipping_address"`
	FreightCents    int64        `db:"freight_cents"`
	CreatedAt       time.Time    `db:"created_at"`
	FulfilledAt     sql.NullTime `db:"fulfilled_at"`
	ShippedAt       sql.NullTime `db:"shipped_at"`
}

// ToModel converts OrderDal to service layer Order model
func (o *OrderDal) ToModel() order.Order {
	m := order.Order{
		ID:              o.Id,
		CustomerID:      o.CustomerId,
		Status:          order.Status(o.Status),
		ShippingAddress: o.ShippingAddress,
		FreightCents:    o.FreightCents,
		CreatedAt:       o.CreatedAt,
		Lines:           []orderline.OrderLine{}, // Will be populated separately
	}
	if o.FulfilledAt.Valid {
		t := o.FulfilledAt.Time
		m.FulfilledAt = &t
	}
	if o.ShippedAt.Valid {
		t := o.ShippedAt.Time
		m.ShippedAt = &t
	}

	return m
}

// OrderLineDal represents order line data access layer model.
type OrderLineDal struct {
	Id             int64           `db:"id"`
	OrderId        string          `db:"order_id"`
	LineNo         int             `db:"line_no"`
	ProductId      string          `db:"product_id"`
	Quantity       int64           `db:"quantity"`
	UnitPriceCents int64           `db:"unit_price_cents"`
	Discount       decimal.Decimal `db:"discount"`
}

// ToModel converts OrderLineDal to service layer OrderLine model.
func (l *OrderLineDal) ToModel() orderline.OrderLine {
	return orderline.OrderLine{
		ID:             l.Id,
		OrderID:        l.OrderId,
		LineNo:         l.LineNo,
		ProductID:      l.ProductId,
		Quantity:       l.Quantity,
		UnitPriceCents: l.UnitPriceCents,
		Discount:       l.Discount,
	}
}

var orderColumns = []string{
	"id",
	"customer_id",
	"status",
	"shipping_address",
	"freight_cents",
	"created_at",
	"fulfilled_at",
	"shipped_at",
}

var lineColumns = []string{
	"id",
	"order_id",
	"line_no",
	"product_id",
	"quantity",
	"unit_price_cents",
	"discount",
}

// OrderRepository persists order headers together with their lines.
type OrderRepository struct {
	conn sqlx.ExtContext
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(conn sqlx.ExtContext) *OrderRepository {
	return &OrderRepository{
		conn: conn,
	}
}

func validateLines(lines []orderline.OrderLine) error {
	if len(lines) == 0 {
		return &fulfillment.ValidationError{Line: -1, Reason: fulfillment.ReasonNoLines}
	}
	for i, l := range lines {
		switch {
		case l.Quantity <= 0:
			return &fulfillment.ValidationError{Line: i, ProductID: l.ProductID, Reason: fulfillment.ReasonBadQuantity}
		case !orderline.ValidDiscount(l.Discount):
			return &fulfillment.ValidationError{Line: i, ProductID: l.ProductID, Reason: fulfillment.ReasonBadDiscount}
		}
	}

	return nil
}

// Create inserts the order header and all of its lines in one batch statement.
// Lines referencing unknown products are rejected before anything is written.
func (r *OrderRepository) Create(ctx context.Context, o order.Order) (order.Order, error) {
	if err := validateLines(o.Lines); err != nil {
		return order.Order{}, err
	}
	if err := r.checkProducts(ctx, o.Lines); err != nil {
		return order.Order{}, err
	}

	query, args, err := sq.Insert("orders").
		Columns(orderColumns...).
		Values(
			o.ID,
			o.CustomerID,
			string(o.Status),
			o.ShippingAddress,
			o.FreightCents,
			o.CreatedAt.UTC(),
			nullTime(o.FulfilledAt),
			nullTime(o.ShippedAt),
		).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.ExecContext(ctx, r.conn.Rebind(query), args...); err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	builder := sq.Insert("order_lines").
		Columns("order_id", "line_no", "product_id", "quantity", "unit_price_cents", "discount").
		Suffix("RETURNING id, line_no")
	for i, l := range o.Lines {
		builder = builder.Values(o.ID, i, l.ProductID, l.Quantity, l.UnitPriceCents, l.Discount.String())
	}

	query, args, err = builder.ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build order lines insert query: %w", err)
	}

	var inserted []struct {
		Id     int64 `db:"id"`
		LineNo int   `db:"line_no"`
	}
	if err := sqlx.SelectContext(ctx, r.conn, &inserted, r.conn.Rebind(query), args...); err != nil {
		return order.Order{}, fmt.Errorf("failed to bulk insert order lines: %w", err)
	}

	lines := make([]orderline.OrderLine, len(o.Lines))
	copy(lines, o.Lines)
	for _, row := range inserted {
		lines[row.LineNo].ID = row.Id
	}
	for i := range lines {
		lines[i].OrderID = o.ID
		lines[i].LineNo = i
	}
	o.Lines = lines

	return o, nil
}

func (r *OrderRepository) checkProducts(ctx context.Context, lines []orderline.OrderLine) error {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	query, args, err := sq.Select("id").
		From("products").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build select query: %w", err)
	}

	var found []string
	if err := sqlx.SelectContext(ctx, r.conn, &found, r.conn.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to query products: %w", err)
	}

	known := make(map[string]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for i, l := range lines {
		if !known[l.ProductID] {
			return &fulfillment.ValidationError{Line: i, ProductID: l.ProductID, Reason: fulfillment.ReasonUnknownProduct}
		}
	}

	return nil
}

// MarkFulfilled moves a pending order to fulfilled.
func (r *OrderRepository) MarkFulfilled(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, id, order.StatusPending, order.StatusFulfilled, "fulfilled_at", at, order.ErrAlreadyFulfilled)
}

// MarkShipped moves a fulfilled order to shipped.
func (r *OrderRepository) MarkShipped(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, id, order.StatusFulfilled, order.StatusShipped, "shipped_at", at, order.ErrInvalidTransition)
}

func (r *OrderRepository) transition(
	ctx context.Context,
	id string,
	from, to order.Status,
	column string,
	at time.Time,
	conflictErr error,
) error {
	query, args, err := sq.Update("orders").
		Set("status", string(to)).
		Set(column, at.UTC()).
		Where(sq.Eq{"id": id, "status": string(from)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	res, err := r.conn.ExecContext(ctx, r.conn.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.getHeader(ctx, id); err != nil {
		return err
	}

	return conflictErr
}

// Get returns one order with its lines.
func (r *OrderRepository) Get(ctx context.Context, id string) (order.Order, error) {
	o, err := r.getHeader(ctx, id)
	if err != nil {
		return order.Order{}, err
	}

	lines, err := r.queryLines(ctx, []string{id})
	if err != nil {
		return order.Order{}, err
	}
	o.Lines = append(o.Lines, lines...)

	return o, nil
}

func (r *OrderRepository) getHeader(ctx context.Context, id string) (order.Order, error) {
	query, args, err := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal OrderDal
	err = sqlx.GetContext(ctx, r.conn, &dal, r.conn.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, order.ErrNotFound
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	return dal.ToModel(), nil
}

// Query retrieves orders based on filter criteria, newest first, with their lines.
func (r *OrderRepository) Query(ctx context.Context, filter *order.Filter) ([]order.Order, error) {
	query := sq.Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC", "id")

	if len(filter.IDs) > 0 {
		query = query.Where(sq.Eq{"id": filter.IDs})
	}

	if len(filter.CustomerIDs) > 0 {
		query = query.Where(sq.Eq{"customer_id": filter.CustomerIDs})
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var dals []OrderDal
	if err := sqlx.SelectContext(ctx, r.conn, &dals, r.conn.Rebind(sqlStr), args...); err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	if len(dals) == 0 {
		return []order.Order{}, nil
	}

	orders := make([]order.Order, 0, len(dals))
	ids := make([]string, 0, len(dals))
	for i := range dals {
		orders = append(orders, dals[i].ToModel())
		ids = append(ids, dals[i].Id)
	}

	lines, err := r.queryLines(ctx, ids)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[string][]orderline.OrderLine, len(orders))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	for i := range orders {
		orders[i].Lines = append(orders[i].Lines, byOrder[orders[i].ID]...)
	}

	return orders, nil
}

func (r *OrderRepository) queryLines(ctx context.Context, orderIDs []string) ([]orderline.OrderLine, error) {
	query, args, err := sq.Select(lineColumns...).
		From("order_lines").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("order_id", "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var dals []OrderLineDal
	if err := sqlx.SelectContext(ctx, r.conn, &dals, r.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}

	result := make([]orderline.OrderLine, 0, len(dals))
	for i := range dals {
		result = append(result, dals[i].ToModel())
	}

	return result, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: t.UTC(), Valid: true}
}
