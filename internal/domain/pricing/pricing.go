// Package pricing turns a checkout cart into a trustworthy price breakdown:
// catalog prices replace client-supplied ones, a flat delivery fee is added,
// and at most one running promotion is applied.
package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain"
)

// DefaultDeliveryFee is the flat fee for delivery orders.
var DefaultDeliveryFee = decimal.NewFromInt(150)

// MaxQuantity is the largest quantity accepted on a single cart line.
const MaxQuantity = 10_000

// Mode is how the order reaches the customer.
type Mode string

const (
	ModeDelivery Mode = "delivery"
	ModePickup   Mode = "pickup"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeDelivery || m == ModePickup
}

var (
	// ErrEmptyCart is returned for a cart without lines.
	ErrEmptyCart = domain.Invalid("items", "cart is empty")
	// ErrMissingPhone is returned when no contact phone is given.
	ErrMissingPhone = domain.Invalid("phone", "phone is required")
	// ErrIncompleteAddress is returned for delivery orders without street or house.
	ErrIncompleteAddress = domain.Invalid("address", "street and house are required for delivery")
	// ErrOrderTooLarge is returned when the subtotal exceeds domain.MaxAmount.
	ErrOrderTooLarge = domain.Invalid("items", "order subtotal is too large")
)

// InvalidModeError is returned when the mode is neither delivery nor pickup.
type InvalidModeError struct {
	Mode string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid order mode %q", e.Mode)
}

func (e *InvalidModeError) Unwrap() error { return domain.ErrInvalid }

// Address is a delivery destination.
type Address struct {
	Street       string `json:"street"`
	House        string `json:"house"`
	Entrance     string `json:"entrance"`
	Floor        string `json:"floor"`
	Apartment    string `json:"apartment"`
	PrivateHouse bool   `json:"isPrivateHouse"`
}

// Complete reports whether the address has the fields a courier needs.
func (a *Address) Complete() bool {
	return a != nil && strings.TrimSpace(a.Street) != "" && strings.TrimSpace(a.House) != ""
}

// Line is a cart line as submitted by the client: either a CatalogLine or a
// RawLine.
type Line interface {
	line()
}

// CatalogLine references a catalog product. Name and UnitPrice are what the
// client claims; they are used only if the catalog has no such product.
type CatalogLine struct {
	ProductID string
	Quantity  int
	Name      string
	UnitPrice decimal.Decimal
}

// RawLine is a line without a product reference. Its price is taken as given.
type RawLine struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (CatalogLine) line() {}
func (RawLine) line()     {}

// Source tells where a priced line got its price from.
type Source string

const (
	SourceCatalog Source = "catalog"
	SourceClient  Source = "client"
)

// PricedLine is a cart line with its price resolved.
type PricedLine struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Source    Source
}

// Total returns UnitPrice × Quantity.
func (l PricedLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Pricing is the price breakdown of an order.
// Total = Subtotal - DiscountAmount + DeliveryFee.
type Pricing struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DeliveryFee     decimal.Decimal `json:"deliveryFee"`
	DiscountPercent int             `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	Total           decimal.Decimal `json:"total"`
	// PromotionID is the applied promotion, empty when no discount applies.
	PromotionID string `json:"promotionId,omitempty"`
}

// Cart is a checkout request.
type Cart struct {
	Lines   []Line
	Mode    Mode
	Address *Address
	Phone   string
	Comment string
}

// Quote is a validated, priced cart.
type Quote struct {
	Lines   []PricedLine
	Pricing Pricing
	Mode    Mode
	// Address is nil for pickup orders.
	Address *Address
	Phone   string
	Comment string
}

// Validate checks the cart fields that do not need the catalog.
func (c Cart) Validate() error {
	if len(c.Lines) == 0 {
		return ErrEmptyCart
	}
	if !c.Mode.Valid() {
		return &InvalidModeError{Mode: string(c.Mode)}
	}
	if strings.TrimSpace(c.Phone) == "" {
		return ErrMissingPhone
	}
	if c.Mode == ModeDelivery && !c.Address.Complete() {
		return ErrIncompleteAddress
	}
	for i, l := range c.Lines {
		var (
			price decimal.Decimal
			qty   int
		)
		switch l := l.(type) {
		case CatalogLine:
			price, qty = l.UnitPrice, l.Quantity
		case RawLine:
			price, qty = l.UnitPrice, l.Quantity
		}
		if domain.CheckAmount("items", price) != nil {
			return domain.Invalid("items", fmt.Sprintf("line %d: price is out of range", i+1))
		}
		if qty > MaxQuantity {
			return domain.Invalid("items", fmt.Sprintf("line %d: quantity must not exceed %d", i+1, MaxQuantity))
		}
	}
	return nil
}
