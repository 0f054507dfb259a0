// Package storagetest is a conformance suite run against every storage
// backend.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/catalog"
	"github.com/xenking/tokyo-express/internal/domain/order"
	"github.com/xenking/tokyo-express/internal/domain/pricing"
	"github.com/xenking/tokyo-express/internal/domain/promotion"
	"github.com/xenking/tokyo-express/internal/domain/user"
)

// Repos is a full set of repositories over one empty database.
type Repos struct {
	Categories catalog.CategoryRepository
	Products   catalog.ProductRepository
	Promotions promotion.Repository
	Orders     order.Repository
	Users      user.Repository
}

// Run executes the suite. fresh must return repositories over an empty
// database for each call.
func Run(t *testing.T, fresh func(t *testing.T) Repos) {
	t.Run("Catalog", func(t *testing.T) { testCatalog(t, fresh(t)) })
	t.Run("Promotions", func(t *testing.T) { testPromotions(t, fresh(t)) })
	t.Run("Orders", func(t *testing.T) { testOrders(t, fresh(t)) })
	t.Run("OrderAmountLimits", func(t *testing.T) { testOrderAmountLimits(t, fresh(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, fresh(t)) })
}

// Stored timestamps lose precision below microseconds in both backends.
var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T, r Repos) {
	ctx := context.Background()

	rolls := &catalog.Category{Name: "Rolls", Slug: "rolls", Position: 2, Active: true, CreatedAt: base, UpdatedAt: base}
	sets := &catalog.Category{Name: "Sets", Slug: "sets", Position: 1, Active: true, CreatedAt: base, UpdatedAt: base}
	hidden := &catalog.Category{Name: "Hidden", Slug: "hidden", Position: 0, CreatedAt: base, UpdatedAt: base}
	for _, c := range []*catalog.Category{rolls, sets, hidden} {
		require.NoError(t, r.Categories.Create(ctx, c))
		require.NotEmpty(t, c.ID)
	}

	dup := &catalog.Category{Name: "Rolls again", Slug: "rolls", CreatedAt: base, UpdatedAt: base}
	assert.ErrorIs(t, r.Categories.Create(ctx, dup), domain.ErrConflict)

	active, err := r.Categories.List(ctx, catalog.CategoryFilter{OnlyActive: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "sets", active[0].Slug)
	assert.Equal(t, "rolls", active[1].Slug)

	all, err := r.Categories.List(ctx, catalog.CategoryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	promoted := true
	products := []*catalog.Product{
		{Name: "Philadelphia", Slug: "philadelphia", CategoryID: rolls.ID, Price: decimal.NewFromInt(695), Available: true, Promoted: true, Position: 1},
		{Name: "California", Slug: "california", CategoryID: rolls.ID, Price: decimal.NewFromInt(540), Available: true, Position: 1},
		{Name: "Old roll", Slug: "old-roll", CategoryID: rolls.ID, Price: decimal.NewFromInt(100)},
		{Name: "Big set 100%", Slug: "big-set", CategoryID: sets.ID, Price: decimal.RequireFromString("2490.50"), Available: true},
	}
	for _, p := range products {
		p.CreatedAt, p.UpdatedAt = base, base
		require.NoError(t, r.Products.Create(ctx, p))
	}

	got, err := r.Products.List(ctx, catalog.ProductFilter{OnlyAvailable: true, CategoryID: rolls.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "California", got[0].Name)

	got, err = r.Products.List(ctx, catalog.ProductFilter{Search: "PHILA"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, decimal.NewFromInt(695).Equal(got[0].Price))

	got, err = r.Products.List(ctx, catalog.ProductFilter{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "big-set", got[0].Slug)

	got, err = r.Products.List(ctx, catalog.ProductFilter{Promoted: &promoted})
	require.NoError(t, err)
	require.Len(t, got, 1)

	byIDs, err := r.Products.GetByIDs(ctx, []string{products[0].ID, products[3].ID, "00000000-0000-0000-0000-000000000000"})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)

	one, err := r.Products.GetByID(ctx, products[3].ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2490.5").Equal(one.Price))

	one.Price = decimal.NewFromInt(2600)
	one.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, r.Products.Update(ctx, one))
	one, err = r.Products.GetByID(ctx, products[3].ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2600).Equal(one.Price))

	upsert := &catalog.Product{Name: "Philadelphia Lux", Slug: "philadelphia", CategoryID: rolls.ID, Price: decimal.NewFromInt(750), Available: true, CreatedAt: base, UpdatedAt: base}
	require.NoError(t, r.Products.Upsert(ctx, upsert))
	assert.Equal(t, products[0].ID, upsert.ID)

	_, err = r.Products.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bySlug, err := r.Products.GetBySlug(ctx, "philadelphia")
	require.NoError(t, err)
	assert.Equal(t, products[0].ID, bySlug.ID)
	assert.Equal(t, "Philadelphia Lux", bySlug.Name)
	_, err = r.Products.GetBySlug(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, r.Categories.Delete(ctx, rolls.ID), domain.ErrConflict)
	require.NoError(t, r.Categories.Delete(ctx, hidden.ID))
	assert.ErrorIs(t, r.Categories.Delete(ctx, hidden.ID), domain.ErrNotFound)

	require.NoError(t, r.Products.Delete(ctx, products[2].ID))
	assert.ErrorIs(t, r.Products.Delete(ctx, products[2].ID), domain.ErrNotFound)
}

func testPromotions(t *testing.T, r Repos) {
	ctx := context.Background()
	from := base.Add(-time.Hour)

	older := &promotion.Promotion{Title: "Old", DiscountPercent: 10, Enabled: true, CreatedAt: base.Add(-24 * time.Hour), UpdatedAt: base}
	newer := &promotion.Promotion{
		Title: "Spring", DiscountPercent: 20, MinOrderSubtotal: decimal.NewFromInt(2000),
		ActiveFrom: &from, Enabled: true, CreatedAt: base, UpdatedAt: base,
	}
	require.NoError(t, r.Promotions.Create(ctx, older))
	require.NoError(t, r.Promotions.Create(ctx, newer))

	all, err := r.Promotions.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	require.NotNil(t, all[0].ActiveFrom)
	assert.True(t, from.Equal(*all[0].ActiveFrom))
	assert.Nil(t, all[0].ActiveTo)
	assert.True(t, decimal.NewFromInt(2000).Equal(all[0].MinOrderSubtotal))

	newer.Enabled = false
	newer.ActiveFrom = nil
	require.NoError(t, r.Promotions.Update(ctx, newer))
	got, err := r.Promotions.GetByID(ctx, newer.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Nil(t, got.ActiveFrom)

	require.NoError(t, r.Promotions.Delete(ctx, older.ID))
	_, err = r.Promotions.GetByID(ctx, older.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testOrders(t *testing.T, r Repos) {
	ctx := context.Background()

	mk := func(status order.Status, mode pricing.Mode, at time.Time) *order.Order {
		o := &order.Order{
			Items: []order.Item{{ProductID: "p1", Name: "Roll", Price: decimal.NewFromInt(500), Quantity: 2}},
			Pricing: pricing.Pricing{
				Subtotal:    decimal.NewFromInt(1000),
				DeliveryFee: decimal.NewFromInt(150),
				Total:       decimal.NewFromInt(1150),
			},
			Mode:      mode,
			Phone:     "+7 900",
			Status:    status,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if mode == pricing.ModeDelivery {
			o.Address = &pricing.Address{Street: "Lenina", House: "1", Floor: "3"}
		}
		require.NoError(t, r.Orders.Create(ctx, o))
		return o
	}

	first := mk(order.StatusNew, pricing.ModeDelivery, base)
	second := mk(order.StatusDone, pricing.ModePickup, base.Add(time.Hour))
	third := mk(order.StatusCanceled, pricing.ModeDelivery, base.Add(2*time.Hour))

	got, err := r.Orders.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Roll", got.Items[0].Name)
	assert.True(t, decimal.NewFromInt(500).Equal(got.Items[0].Price))
	require.NotNil(t, got.Address)
	assert.Equal(t, "3", got.Address.Floor)
	assert.True(t, decimal.NewFromInt(1150).Equal(got.Pricing.Total))

	pickup, err := r.Orders.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, pickup.Address)

	all, err := r.Orders.List(ctx, order.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)

	filtered, err := r.Orders.List(ctx, order.Filter{Statuses: []order.Status{order.StatusNew, order.StatusDone}, Mode: pricing.ModeDelivery})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, first.ID, filtered[0].ID)

	window, err := r.Orders.List(ctx, order.Filter{CreatedAfter: base.Add(time.Hour), CreatedBefore: base.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, second.ID, window[0].ID)

	limited, err := r.Orders.List(ctx, order.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, r.Orders.UpdateStatus(ctx, first.ID, order.StatusCooking, base.Add(time.Minute)))
	got, err = r.Orders.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCooking, got.Status)

	got.Comment = "extra ginger"
	got.Items = append(got.Items, order.Item{Name: "Ginger", Price: decimal.NewFromInt(30), Quantity: 1})
	require.NoError(t, r.Orders.Update(ctx, got))
	got, err = r.Orders.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "extra ginger", got.Comment)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, order.StatusCooking, got.Status)

	assert.ErrorIs(t, r.Orders.UpdateStatus(ctx, "00000000-0000-0000-0000-000000000000", order.StatusDone, base), domain.ErrNotFound)
	require.NoError(t, r.Orders.Delete(ctx, third.ID))
	_, err = r.Orders.GetByID(ctx, third.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// testOrderAmountLimits prices carts at the accepted bounds and checks the
// stored order matches what the engine returned.
func testOrderAmountLimits(t *testing.T, r Repos) {
	ctx := context.Background()
	engine := pricing.NewEngine(pricing.CatalogPrices(r.Products), r.Promotions, pricing.DefaultDeliveryFee)
	cart := func(lines ...pricing.Line) pricing.Cart {
		return pricing.Cart{
			Lines:   lines,
			Mode:    pricing.ModeDelivery,
			Address: &pricing.Address{Street: "Lenina", House: "1"},
			Phone:   "+7 900",
		}
	}

	q, err := engine.Quote(ctx, cart(
		pricing.RawLine{Name: "Banquet", UnitPrice: domain.MaxAmount.Sub(decimal.NewFromInt(1)), Quantity: 1},
		pricing.RawLine{Name: "Napkin", UnitPrice: decimal.RequireFromString("0.005"), Quantity: 1},
	))
	require.NoError(t, err)

	o := &order.Order{
		Pricing:   q.Pricing,
		Mode:      q.Mode,
		Address:   q.Address,
		Phone:     q.Phone,
		Status:    order.StatusNew,
		CreatedAt: base,
		UpdatedAt: base,
	}
	for _, l := range q.Lines {
		o.Items = append(o.Items, order.Item{Name: l.Name, Price: l.UnitPrice, Quantity: l.Quantity})
	}
	require.NoError(t, r.Orders.Create(ctx, o))

	got, err := r.Orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	for i := range o.Items {
		assert.True(t, o.Items[i].Price.Equal(got.Items[i].Price), "item %d: %s != %s", i, o.Items[i].Price, got.Items[i].Price)
	}
	assert.Equal(t, "0.01", got.Items[1].Price.String())
	assert.True(t, o.Pricing.Subtotal.Equal(got.Pricing.Subtotal), got.Pricing.Subtotal.String())
	assert.True(t, o.Pricing.Total.Equal(got.Pricing.Total), got.Pricing.Total.String())
	assert.True(t, decimal.RequireFromString("1000000149.01").Equal(got.Pricing.Total))

	_, err = engine.Quote(ctx, cart(
		pricing.RawLine{Name: "Banquet", UnitPrice: domain.MaxAmount, Quantity: 1},
		pricing.RawLine{Name: "Napkin", UnitPrice: decimal.RequireFromString("0.01"), Quantity: 1},
	))
	assert.ErrorIs(t, err, pricing.ErrOrderTooLarge)
}

func testUsers(t *testing.T, r Repos) {
	ctx := context.Background()

	admin := &user.User{Login: "admin", PasswordHash: "h1", Role: user.RoleAdmin, CreatedAt: base, UpdatedAt: base}
	manager := &user.User{Login: "manager", PasswordHash: "h2", Role: user.RoleManager, Name: "Kenji", CreatedAt: base.Add(time.Hour), UpdatedAt: base}
	require.NoError(t, r.Users.Create(ctx, admin))
	require.NoError(t, r.Users.Create(ctx, manager))

	dup := &user.User{Login: "admin", PasswordHash: "h3", Role: user.RoleAdmin, CreatedAt: base, UpdatedAt: base}
	assert.ErrorIs(t, r.Users.Create(ctx, dup), domain.ErrConflict)

	list, err := r.Users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "manager", list[0].Login)

	got, err := r.Users.GetByLogin(ctx, "manager")
	require.NoError(t, err)
	assert.Equal(t, manager.ID, got.ID)
	assert.Equal(t, user.RoleManager, got.Role)

	got.Login = "admin"
	assert.ErrorIs(t, r.Users.Update(ctx, got), domain.ErrConflict)

	got.Login = "kenji"
	require.NoError(t, r.Users.Update(ctx, got))
	_, err = r.Users.GetByLogin(ctx, "manager")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, r.Users.Delete(ctx, admin.ID))
	_, err = r.Users.GetByID(ctx, admin.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
