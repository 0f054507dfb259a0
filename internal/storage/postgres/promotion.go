package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tokyo-express/internal/domain/promotion"
)

const (
	promotionColumns = `id, title, description, discount_percent, min_order_subtotal,
		active_from, active_to, enabled, created_at, updated_at`

	listPromotionsSQL = `SELECT ` + promotionColumns + ` FROM promotions ORDER BY created_at DESC, id DESC`

	getPromotionByIDSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`

	createPromotionSQL = `INSERT INTO promotions (` + promotionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updatePromotionSQL = `UPDATE promotions SET title = $2, description = $3, discount_percent = $4,
		min_order_subtotal = $5, active_from = $6, active_to = $7, enabled = $8, updated_at = $9
		WHERE id = $1`

	deletePromotionSQL = `DELETE FROM promotions WHERE id = $1`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// ListAll returns every promotion, newest first.
func (r *PromotionRepository) ListAll(ctx context.Context) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listPromotionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return pgx.CollectRows(rows, scanPromotion)
}

func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, getPromotionByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting promotion %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("getting promotion %q: %w", id, err)
	}
	return &p, nil
}

func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	if p.ID == "" {
		p.ID = newID()
	}
	_, err := r.pool.Exec(ctx, createPromotionSQL,
		p.ID, p.Title, p.Description, p.DiscountPercent, p.MinOrderSubtotal,
		p.ActiveFrom, p.ActiveTo, p.Enabled, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating promotion %q: %w", p.Title, err)
	}
	return nil
}

func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	tag, err := r.pool.Exec(ctx, updatePromotionSQL,
		p.ID, p.Title, p.Description, p.DiscountPercent, p.MinOrderSubtotal,
		p.ActiveFrom, p.ActiveTo, p.Enabled, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating promotion %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deletePromotionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting promotion %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var p promotion.Promotion
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.DiscountPercent, &p.MinOrderSubtotal,
		&p.ActiveFrom, &p.ActiveTo, &p.Enabled, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
