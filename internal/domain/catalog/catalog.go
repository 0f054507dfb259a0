// Package catalog holds the storefront menu: categories and the products
// listed under them.
package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain"
)

var (
	// ErrCategoryNotFound is returned when a category id does not exist.
	ErrCategoryNotFound = domain.NotFound("category")
	// ErrProductNotFound is returned when a product id does not exist.
	ErrProductNotFound = domain.NotFound("product")
	// ErrDuplicateSlug is returned when a slug is already taken.
	ErrDuplicateSlug = errDuplicateSlug{}
)

type errDuplicateSlug struct{}

func (errDuplicateSlug) Error() string { return "slug already exists" }
func (errDuplicateSlug) Unwrap() error { return domain.ErrConflict }

// Category groups products in the menu. ParentID is empty for top-level
// categories.
type Category struct {
	ID        string
	Name      string
	Slug      string
	ParentID  string
	Position  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product is a menu item.
type Product struct {
	ID          string
	Name        string
	Slug        string
	CategoryID  string
	Description string
	Composition string
	Weight      string
	Price       decimal.Decimal
	Image       string
	Available   bool
	Promoted    bool
	// DiscountPercent is shown as a badge on the storefront card. Order
	// pricing ignores it.
	DiscountPercent int
	Position        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CategoryFilter narrows category listings.
type CategoryFilter struct {
	OnlyActive bool
}

// ProductFilter narrows product listings. Zero values do not filter.
type ProductFilter struct {
	OnlyAvailable bool
	CategoryID    string
	// Search matches a case-insensitive substring of the product name.
	Search   string
	Promoted *bool
}

// CategoryRepository defines persistence operations for categories.
// List results are ordered by position, then name.
type CategoryRepository interface {
	List(ctx context.Context, f CategoryFilter) ([]Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	Create(ctx context.Context, c *Category) error
	// Upsert creates or replaces the category with the same slug.
	Upsert(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id string) error
}

// ProductRepository defines persistence operations for products.
// List results are ordered by position, then name.
type ProductRepository interface {
	List(ctx context.Context, f ProductFilter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs returns the products matching ids. Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// GetBySlug returns ErrProductNotFound when no product has slug.
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	// Upsert creates or replaces the product with the same slug.
	Upsert(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// ErrCategoryInUse is returned when deleting a category that still has
// products.
var ErrCategoryInUse = errCategoryInUse{}

type errCategoryInUse struct{}

func (errCategoryInUse) Error() string { return "category still has products" }
func (errCategoryInUse) Unwrap() error { return domain.ErrConflict }
