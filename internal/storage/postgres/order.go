package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tokyo-express/internal/domain/order"
	"github.com/xenking/tokyo-express/internal/domain/pricing"
)

const (
	orderColumns = `id, items, subtotal, delivery_fee, discount_percent, discount_amount, total,
		promotion_id, mode, address, phone, comment, status, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE (COALESCE(cardinality($1::text[]), 0) = 0 OR status = ANY($1::text[]))
		  AND ($2 = '' OR mode = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5`

	updateOrderSQL = `UPDATE orders SET items = $2, subtotal = $3, delivery_fee = $4,
		discount_percent = $5, discount_amount = $6, total = $7, promotion_id = $8, mode = $9,
		address = $10, phone = $11, comment = $12, updated_at = $13
		WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. Items and address are stored as JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	if o.ID == "" {
		o.ID = newID()
	}
	items, address, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, items, o.Pricing.Subtotal, o.Pricing.DeliveryFee, o.Pricing.DiscountPercent,
		o.Pricing.DiscountAmount, o.Pricing.Total, o.Pricing.PromotionID, string(o.Mode),
		address, o.Phone, o.Comment, string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	statuses := make([]string, len(f.Statuses))
	for i, s := range f.Statuses {
		statuses[i] = string(s)
	}
	var limit *int
	if f.Limit > 0 {
		limit = &f.Limit
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL,
		statuses, string(f.Mode), nullTime(f.CreatedAfter), nullTime(f.CreatedBefore), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	items, address, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, items, o.Pricing.Subtotal, o.Pricing.DeliveryFee, o.Pricing.DiscountPercent,
		o.Pricing.DiscountAmount, o.Pricing.Total, o.Pricing.PromotionID, string(o.Mode),
		address, o.Phone, o.Comment, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status), at)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func marshalOrderDocs(o *order.Order) (items, address []byte, err error) {
	items, err = json.Marshal(o.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling order items: %w", err)
	}
	if o.Address != nil {
		address, err = json.Marshal(o.Address)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling order address: %w", err)
		}
	}
	return items, address, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		items, address []byte
		mode, status   string
	)
	err := row.Scan(
		&o.ID, &items, &o.Pricing.Subtotal, &o.Pricing.DeliveryFee, &o.Pricing.DiscountPercent,
		&o.Pricing.DiscountAmount, &o.Pricing.Total, &o.Pricing.PromotionID, &mode,
		&address, &o.Phone, &o.Comment, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Mode = pricing.Mode(mode)
	o.Status = order.Status(status)

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order %q items: %w", o.ID, err)
	}
	if len(address) > 0 {
		o.Address = new(pricing.Address)
		if err := json.Unmarshal(address, o.Address); err != nil {
			return o, fmt.Errorf("unmarshaling order %q address: %w", o.ID, err)
		}
	}
	return o, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
