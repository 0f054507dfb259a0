package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain"
)

// CategoryInput holds the editable fields of a category.
type CategoryInput struct {
	Name     string
	Slug     string
	ParentID string
	Position int
	Active   bool
}

// ProductInput holds the editable fields of a product.
type ProductInput struct {
	Name            string
	Slug            string
	CategoryID      string
	Description     string
	Composition     string
	Weight          string
	Price           decimal.Decimal
	Image           string
	Available       bool
	Promoted        bool
	DiscountPercent int
	Position        int
}

// NormalizeSlug trims and lower-cases a slug.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (in CategoryInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Invalid("name", "name is required")
	}
	if NormalizeSlug(in.Slug) == "" {
		return domain.Invalid("slug", "slug is required")
	}
	return nil
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return domain.Invalid("name", "name is required")
	case NormalizeSlug(in.Slug) == "":
		return domain.Invalid("slug", "slug is required")
	case in.CategoryID == "":
		return domain.Invalid("category", "category is required")
	case in.Price.IsNegative():
		return domain.Invalid("price", "must not be negative")
	case in.DiscountPercent < 0 || in.DiscountPercent > 100:
		return domain.Invalid("discountPercent", "must be between 0 and 100")
	}
	return domain.CheckAmount("price", in.Price)
}

func (in CategoryInput) apply(c *Category) {
	c.Name = strings.TrimSpace(in.Name)
	c.Slug = NormalizeSlug(in.Slug)
	c.ParentID = in.ParentID
	c.Position = in.Position
	c.Active = in.Active
}

func (in ProductInput) apply(p *Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Slug = NormalizeSlug(in.Slug)
	p.CategoryID = in.CategoryID
	p.Description = strings.TrimSpace(in.Description)
	p.Composition = strings.TrimSpace(in.Composition)
	p.Weight = in.Weight
	p.Price = domain.RoundAmount(in.Price)
	p.Image = in.Image
	p.Available = in.Available
	p.Promoted = in.Promoted
	p.DiscountPercent = in.DiscountPercent
	p.Position = in.Position
}

// Service implements catalog management on top of the repositories.
type Service struct {
	categories CategoryRepository
	products   ProductRepository
	now        func() time.Time
}

// NewService creates a catalog Service.
func NewService(categories CategoryRepository, products ProductRepository) *Service {
	return &Service{
		categories: categories,
		products:   products,
		now:        time.Now,
	}
}

// ListCategories returns categories; public callers pass onlyActive.
func (s *Service) ListCategories(ctx context.Context, onlyActive bool) ([]Category, error) {
	return s.categories.List(ctx, CategoryFilter{OnlyActive: onlyActive})
}

// CreateCategory validates and stores a new category.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	c := &Category{CreatedAt: now, UpdatedAt: now}
	in.apply(c)
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// UpdateCategory replaces the editable fields of a category.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*Category, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.ParentID == id {
		return nil, domain.Invalid("parent", "category cannot be its own parent")
	}
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(c)
	c.UpdatedAt = s.now()
	if err := s.categories.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update category %s: %w", id, err)
	}
	return c, nil
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.categories.Delete(ctx, id)
}

// ListProducts returns products matching f.
func (s *Service) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.products.List(ctx, f)
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
		return nil, s.categoryRef(err)
	}
	now := s.now()
	p := &Product{CreatedAt: now, UpdatedAt: now}
	in.apply(p)
	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// UpdateProduct replaces the editable fields of a product.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.CategoryID != p.CategoryID {
		if _, err := s.categories.GetByID(ctx, in.CategoryID); err != nil {
			return nil, s.categoryRef(err)
		}
	}
	in.apply(p)
	p.UpdatedAt = s.now()
	if err := s.products.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	return p, nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	return s.products.Delete(ctx, id)
}

// categoryRef turns a missing referenced category into a validation error.
func (s *Service) categoryRef(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Invalid("category", "category does not exist")
	}
	return fmt.Errorf("get category: %w", err)
}
