package promotion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain"
)

// Input holds the editable fields of a promotion. Update replaces every
// field with the values given here.
type Input struct {
	Title            string
	Description      string
	DiscountPercent  int
	MinOrderSubtotal decimal.Decimal
	ActiveFrom       *time.Time
	ActiveTo         *time.Time
	Enabled          bool
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.Invalid("title", "title is required")
	}
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return domain.Invalid("discountPercent", "must be between 0 and 100")
	}
	if in.MinOrderSubtotal.IsNegative() {
		return domain.Invalid("minOrderTotal", "must not be negative")
	}
	if err := domain.CheckAmount("minOrderTotal", in.MinOrderSubtotal); err != nil {
		return err
	}
	if in.ActiveFrom != nil && in.ActiveTo != nil && in.ActiveTo.Before(*in.ActiveFrom) {
		return domain.Invalid("activeTo", "must not be before activeFrom")
	}
	return nil
}

func (in Input) apply(p *Promotion) {
	p.Title = strings.TrimSpace(in.Title)
	p.Description = strings.TrimSpace(in.Description)
	p.DiscountPercent = in.DiscountPercent
	p.MinOrderSubtotal = domain.RoundAmount(in.MinOrderSubtotal)
	p.ActiveFrom = in.ActiveFrom
	p.ActiveTo = in.ActiveTo
	p.Enabled = in.Enabled
}

// Service implements promotion management and the public "what is running
// now" listing.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a promotion Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListActive returns the promotions running right now, newest first.
func (s *Service) ListActive(ctx context.Context) ([]Promotion, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	now := s.now()
	active := make([]Promotion, 0, len(all))
	for _, p := range all {
		if p.ActiveAt(now) {
			active = append(active, p)
		}
	}
	return active, nil
}

// ListAll returns every promotion, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Promotion, error) {
	return s.repo.ListAll(ctx)
}

// Get returns a promotion by id.
func (s *Service) Get(ctx context.Context, id string) (*Promotion, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates and stores a new promotion.
func (s *Service) Create(ctx context.Context, in Input) (*Promotion, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	p := &Promotion{CreatedAt: now, UpdatedAt: now}
	in.apply(p)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create promotion: %w", err)
	}
	return p, nil
}

// Update replaces the editable fields of an existing promotion.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Promotion, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(p)
	p.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update promotion %s: %w", id, err)
	}
	return p, nil
}

// Delete removes a promotion.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
