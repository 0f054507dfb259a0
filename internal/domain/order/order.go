// Package order holds placed orders, their status lifecycle and the
// checkout flow that creates them.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/pricing"
)

// ErrNotFound is returned when an order id does not exist.
var ErrNotFound = domain.NotFound("order")

// Status is the position of an order in the kitchen and delivery flow.
type Status string

const (
	StatusNew       Status = "new"
	StatusAccepted  Status = "accepted"
	StatusCooking   Status = "cooking"
	StatusToCourier Status = "to_courier"
	StatusOnWay     Status = "on_way"
	StatusDone      Status = "done"
	StatusCanceled  Status = "canceled"
)

// Statuses lists every status in flow order.
var Statuses = []Status{
	StatusNew, StatusAccepted, StatusCooking, StatusToCourier, StatusOnWay, StatusDone, StatusCanceled,
}

// ActiveStatuses are the statuses of orders still being worked on.
var ActiveStatuses = []Status{
	StatusNew, StatusAccepted, StatusCooking, StatusToCourier, StatusOnWay,
}

// next maps each non-terminal status to its forward successor.
var next = map[Status]Status{
	StatusNew:       StatusAccepted,
	StatusAccepted:  StatusCooking,
	StatusCooking:   StatusToCourier,
	StatusToCourier: StatusOnWay,
	StatusOnWay:     StatusDone,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are expected from s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusCanceled
}

// CanTransition reports whether from → to follows the forward flow:
// one step ahead, or cancellation of a non-terminal order. Staying in the
// same status is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from.Terminal() {
		return false
	}
	if to == StatusCanceled {
		return true
	}
	return next[from] == to
}

// TransitionError is returned when a status change breaks the flow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return domain.ErrConflict }

// Item is a priced order line.
type Item struct {
	// ProductID is empty for lines that did not reference the catalog.
	ProductID string          `json:"productId,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"qty"`
}

// Total returns Price × Quantity.
func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed order.
type Order struct {
	ID      string          `json:"id"`
	Items   []Item          `json:"items"`
	Pricing pricing.Pricing `json:"pricing"`
	Mode    pricing.Mode    `json:"mode"`
	// Address is set only for delivery orders.
	Address   *pricing.Address `json:"address,omitempty"`
	Phone     string           `json:"phone"`
	Comment   string           `json:"comment"`
	Status    Status           `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Filter narrows order listings. Zero values do not filter.
type Filter struct {
	Statuses      []Status
	Mode          pricing.Mode
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// Repository defines persistence operations for orders. List results are
// ordered newest first.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	// Update replaces items, pricing, mode, address, phone and comment.
	Update(ctx context.Context, o *Order) error
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// itemsFromQuote converts resolved quote lines into order items.
func itemsFromQuote(lines []pricing.PricedLine) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Price:     l.UnitPrice,
			Quantity:  l.Quantity,
		}
	}
	return items
}
