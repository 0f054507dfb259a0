package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain/promotion"
)

var hundred = decimal.NewFromInt(100)

// SelectPromotion returns the promotion to apply at now: among those active
// with a positive discount, the most recently created one. Equal creation
// times fall back to the larger id. It returns nil when none qualifies.
func SelectPromotion(promos []promotion.Promotion, now time.Time) *promotion.Promotion {
	var best *promotion.Promotion
	for i := range promos {
		p := &promos[i]
		if p.DiscountPercent <= 0 || !p.ActiveAt(now) {
			continue
		}
		if best == nil || newer(p, best) {
			best = p
		}
	}
	return best
}

func newer(a, b *promotion.Promotion) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Compute prices resolved lines. promo may be nil. Malformed quantities
// count as 1 and negative prices as 0. The second result reports that the
// total came out negative and was clamped to zero, which valid input never
// produces.
func Compute(lines []PricedLine, mode Mode, promo *promotion.Promotion, deliveryFee decimal.Decimal) (Pricing, bool) {
	subtotal := decimal.Zero
	for i := range lines {
		normalizeLine(&lines[i])
		subtotal = subtotal.Add(lines[i].Total())
	}

	fee := decimal.Zero
	if mode == ModeDelivery {
		fee = deliveryFee
	}

	p := Pricing{
		Subtotal:       subtotal,
		DeliveryFee:    fee,
		DiscountAmount: decimal.Zero,
	}

	if promo != nil && promo.DiscountPercent > 0 {
		// The gate compares against the pre-discount subtotal.
		if !promo.HasMinimum() || subtotal.GreaterThanOrEqual(promo.MinOrderSubtotal) {
			p.DiscountPercent = min(promo.DiscountPercent, 100)
			p.PromotionID = promo.ID
		}
	}

	if p.DiscountPercent > 0 {
		p.DiscountAmount = subtotal.
			Mul(decimal.NewFromInt(int64(p.DiscountPercent))).
			Div(hundred).
			Round(0)
	}

	p.Total = subtotal.Sub(p.DiscountAmount).Add(fee)
	if p.Total.IsNegative() {
		p.Total = decimal.Zero
		return p, true
	}
	return p, false
}

func normalizeLine(l *PricedLine) {
	if l.Quantity <= 0 {
		l.Quantity = 1
	}
	if l.UnitPrice.IsNegative() {
		l.UnitPrice = decimal.Zero
	}
}
