package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/catalog"
	"github.com/xenking/tokyo-express/internal/domain/promotion"
)

// CatalogPrice is the authoritative name and price of a product.
type CatalogPrice struct {
	Name  string
	Price decimal.Decimal
}

// CatalogReader looks up authoritative prices. Unknown ids have no entry in
// the result.
type CatalogReader interface {
	PricesByIDs(ctx context.Context, ids []string) (map[string]CatalogPrice, error)
}

// PromotionSource lists all stored promotions; the engine decides which one
// is running.
type PromotionSource interface {
	ListAll(ctx context.Context) ([]promotion.Promotion, error)
}

// Engine validates and prices carts.
type Engine struct {
	catalog     CatalogReader
	promotions  PromotionSource
	deliveryFee decimal.Decimal
	now         func() time.Time
}

// NewEngine creates an Engine. A negative deliveryFee is treated as zero.
func NewEngine(catalog CatalogReader, promotions PromotionSource, deliveryFee decimal.Decimal) *Engine {
	if deliveryFee.IsNegative() {
		deliveryFee = decimal.Zero
	}
	return &Engine{
		catalog:     catalog,
		promotions:  promotions,
		deliveryFee: deliveryFee,
		now:         time.Now,
	}
}

// Quote validates the cart, resolves line prices against the catalog and
// applies the promotion running right now. It never writes state.
func (e *Engine) Quote(ctx context.Context, cart Cart) (*Quote, error) {
	if err := cart.Validate(); err != nil {
		return nil, err
	}

	lines, err := e.resolve(ctx, cart.Lines)
	if err != nil {
		return nil, err
	}

	promos, err := e.promotions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	now := e.now()

	p, clamped := Compute(lines, cart.Mode, SelectPromotion(promos, now), e.deliveryFee)
	if p.Subtotal.GreaterThan(domain.MaxAmount) {
		return nil, ErrOrderTooLarge
	}
	if clamped {
		zctx.From(ctx).Error("pricing: negative total clamped",
			zap.String("subtotal", p.Subtotal.String()),
			zap.String("discount", p.DiscountAmount.String()),
			zap.String("delivery_fee", p.DeliveryFee.String()),
		)
	}

	q := &Quote{
		Lines:   lines,
		Pricing: p,
		Mode:    cart.Mode,
		Phone:   strings.TrimSpace(cart.Phone),
		Comment: strings.TrimSpace(cart.Comment),
	}
	if cart.Mode == ModeDelivery {
		addr := *cart.Address
		q.Address = &addr
	}
	return q, nil
}

// resolve replaces client prices of catalog lines with the catalog's.
func (e *Engine) resolve(ctx context.Context, in []Line) ([]PricedLine, error) {
	var ids []string
	seen := make(map[string]struct{})
	for _, l := range in {
		cl, ok := l.(CatalogLine)
		if !ok {
			continue
		}
		if _, dup := seen[cl.ProductID]; dup {
			continue
		}
		seen[cl.ProductID] = struct{}{}
		ids = append(ids, cl.ProductID)
	}

	var prices map[string]CatalogPrice
	if len(ids) > 0 {
		var err error
		prices, err = e.catalog.PricesByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("lookup prices: %w", err)
		}
	}

	out := make([]PricedLine, 0, len(in))
	for _, l := range in {
		switch l := l.(type) {
		case CatalogLine:
			if cp, ok := prices[l.ProductID]; ok {
				out = append(out, PricedLine{
					ProductID: l.ProductID,
					Name:      cp.Name,
					UnitPrice: cp.Price,
					Quantity:  l.Quantity,
					Source:    SourceCatalog,
				})
				continue
			}
			zctx.From(ctx).Warn("Unknown product in cart, using client price",
				zap.String("product_id", l.ProductID),
			)
			out = append(out, PricedLine{
				ProductID: l.ProductID,
				Name:      l.Name,
				UnitPrice: domain.RoundAmount(l.UnitPrice),
				Quantity:  l.Quantity,
				Source:    SourceClient,
			})
		case RawLine:
			out = append(out, PricedLine{
				Name:      l.Name,
				UnitPrice: domain.RoundAmount(l.UnitPrice),
				Quantity:  l.Quantity,
				Source:    SourceClient,
			})
		}
	}
	return out, nil
}

// CatalogPrices adapts a product repository to CatalogReader.
func CatalogPrices(products catalog.ProductRepository) CatalogReader {
	return catalogPrices{products: products}
}

type catalogPrices struct {
	products catalog.ProductRepository
}

func (c catalogPrices) PricesByIDs(ctx context.Context, ids []string) (map[string]CatalogPrice, error) {
	found, err := c.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]CatalogPrice, len(found))
	for _, p := range found {
		out[p.ID] = CatalogPrice{Name: p.Name, Price: p.Price}
	}
	return out, nil
}
