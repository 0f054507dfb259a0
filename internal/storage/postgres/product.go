package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tokyo-express/internal/domain/catalog"
)

const (
	productColumns = `id, name, slug, category_id, description, composition, weight, price, image,
		available, promoted, discount_percent, position, created_at, updated_at`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE ($1 = false OR available)
		  AND ($2 = '' OR category_id = $2)
		  AND ($3 = '' OR name ILIKE $4)
		  AND ($5::boolean IS NULL OR promoted = $5)
		ORDER BY position, name`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductBySlugSQL = `SELECT ` + productColumns + ` FROM products WHERE slug = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	createProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name, category_id = EXCLUDED.category_id, description = EXCLUDED.description,
			composition = EXCLUDED.composition, weight = EXCLUDED.weight, price = EXCLUDED.price,
			image = EXCLUDED.image, available = EXCLUDED.available, promoted = EXCLUDED.promoted,
			discount_percent = EXCLUDED.discount_percent, position = EXCLUDED.position,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	updateProductSQL = `UPDATE products SET name = $2, slug = $3, category_id = $4, description = $5,
		composition = $6, weight = $7, price = $8, image = $9, available = $10, promoted = $11,
		discount_percent = $12, position = $13, updated_at = $14
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ catalog.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements catalog.ProductRepository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns products matching f ordered by position, then name.
func (r *ProductRepository) List(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL,
		f.OnlyAvailable, f.CategoryID, f.Search, likePattern(f.Search), f.Promoted,
	)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetBySlug returns a single product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductBySlugSQL, slug)
	if err != nil {
		return nil, fmt.Errorf("getting product by slug %q: %w", slug, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product by slug %q: %w", slug, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	if p.ID == "" {
		p.ID = newID()
	}
	_, err := r.pool.Exec(ctx, createProductSQL, productArgs(p)...)
	return productWriteErr("creating", p, err)
}

func (r *ProductRepository) Upsert(ctx context.Context, p *catalog.Product) error {
	if p.ID == "" {
		p.ID = newID()
	}
	err := r.pool.QueryRow(ctx, upsertProductSQL, productArgs(p)...).Scan(&p.ID, &p.CreatedAt)
	return productWriteErr("upserting", p, err)
}

func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Slug, p.CategoryID, p.Description, p.Composition, p.Weight, p.Price,
		p.Image, p.Available, p.Promoted, p.DiscountPercent, p.Position, p.UpdatedAt,
	)
	if err != nil {
		return productWriteErr("updating", p, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func productArgs(p *catalog.Product) []any {
	return []any{
		p.ID, p.Name, p.Slug, p.CategoryID, p.Description, p.Composition, p.Weight, p.Price, p.Image,
		p.Available, p.Promoted, p.DiscountPercent, p.Position, p.CreatedAt, p.UpdatedAt,
	}
}

func productWriteErr(op string, p *catalog.Product, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return catalog.ErrDuplicateSlug
	case isForeignKeyViolation(err):
		return catalog.ErrCategoryNotFound
	}
	return fmt.Errorf("%s product %q: %w", op, p.Slug, err)
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.CategoryID, &p.Description, &p.Composition, &p.Weight, &p.Price,
		&p.Image, &p.Available, &p.Promoted, &p.DiscountPercent, &p.Position, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
