package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/catalog"
)

const (
	categoryColumns = `id, name, slug, parent_id, position, active, created_at, updated_at`

	listCategoriesSQL = `SELECT ` + categoryColumns + `
		FROM categories WHERE ($1 = false OR active) ORDER BY position, name`

	getCategoryByIDSQL = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	createCategorySQL = `INSERT INTO categories (` + categoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	upsertCategorySQL = `INSERT INTO categories (` + categoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name, parent_id = EXCLUDED.parent_id, position = EXCLUDED.position,
			active = EXCLUDED.active, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	updateCategorySQL = `UPDATE categories SET name = $2, slug = $3, parent_id = $4, position = $5,
		active = $6, updated_at = $7 WHERE id = $1`

	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`
)

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository backed by PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository that uses the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

func (r *CategoryRepository) List(ctx context.Context, f catalog.CategoryFilter) ([]catalog.Category, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL, f.OnlyActive)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, scanCategory)
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*catalog.Category, error) {
	rows, err := r.pool.Query(ctx, getCategoryByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}
	return &c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	if c.ID == "" {
		c.ID = newID()
	}
	_, err := r.pool.Exec(ctx, createCategorySQL,
		c.ID, c.Name, c.Slug, nullString(c.ParentID), c.Position, c.Active, c.CreatedAt, c.UpdatedAt,
	)
	return categoryWriteErr("creating", c, err)
}

func (r *CategoryRepository) Upsert(ctx context.Context, c *catalog.Category) error {
	if c.ID == "" {
		c.ID = newID()
	}
	err := r.pool.QueryRow(ctx, upsertCategorySQL,
		c.ID, c.Name, c.Slug, nullString(c.ParentID), c.Position, c.Active, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID, &c.CreatedAt)
	return categoryWriteErr("upserting", c, err)
}

func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) error {
	tag, err := r.pool.Exec(ctx, updateCategorySQL,
		c.ID, c.Name, c.Slug, nullString(c.ParentID), c.Position, c.Active, c.UpdatedAt,
	)
	if err != nil {
		return categoryWriteErr("updating", c, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCategorySQL, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return catalog.ErrCategoryInUse
		}
		return fmt.Errorf("deleting category %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

func categoryWriteErr(op string, c *catalog.Category, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return catalog.ErrDuplicateSlug
	case isForeignKeyViolation(err):
		return domain.Invalid("parentId", "parent category does not exist")
	}
	return fmt.Errorf("%s category %q: %w", op, c.Slug, err)
}

func scanCategory(row pgx.CollectableRow) (catalog.Category, error) {
	var (
		c      catalog.Category
		parent *string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &parent, &c.Position, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	c.ParentID = derefString(parent)
	return c, err
}
