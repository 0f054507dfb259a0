// Package promotion models order-wide discount campaigns and the rule that
// decides whether one is running at a given instant.
package promotion

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain"
)

// ErrNotFound is returned when a promotion id does not exist.
var ErrNotFound = domain.NotFound("promotion")

// Promotion is an order-wide percentage discount with an optional
// activation window. Nil bounds are unbounded on that side.
type Promotion struct {
	ID              string
	Title           string
	Description     string
	DiscountPercent int
	// MinOrderSubtotal is the pre-discount subtotal required for the
	// discount to apply. Zero means no minimum.
	MinOrderSubtotal decimal.Decimal
	ActiveFrom       *time.Time
	ActiveTo         *time.Time
	Enabled          bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ActiveAt reports whether the promotion is running at now. Both window
// bounds are inclusive.
func (p Promotion) ActiveAt(now time.Time) bool {
	if !p.Enabled {
		return false
	}
	if p.ActiveFrom != nil && now.Before(*p.ActiveFrom) {
		return false
	}
	if p.ActiveTo != nil && now.After(*p.ActiveTo) {
		return false
	}
	return true
}

// HasMinimum reports whether the promotion is gated on a minimum subtotal.
func (p Promotion) HasMinimum() bool {
	return p.MinOrderSubtotal.IsPositive()
}

// Repository defines persistence operations for promotions.
type Repository interface {
	// ListAll returns every promotion, newest first.
	ListAll(ctx context.Context) ([]Promotion, error)
	GetByID(ctx context.Context, id string) (*Promotion, error)
	Create(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id string) error
}
