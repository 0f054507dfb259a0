package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain/catalog"
	"github.com/xenking/tokyo-express/internal/domain/order"
	"github.com/xenking/tokyo-express/internal/domain/promotion"
	"github.com/xenking/tokyo-express/internal/domain/user"
)

type categoryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Parent    *string   `json:"parent"`
	Position  int       `json:"position"`
	Active    bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toCategoryResponse(c *catalog.Category) categoryResponse {
	resp := categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Slug:      c.Slug,
		Position:  c.Position,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.ParentID != "" {
		resp.Parent = &c.ParentID
	}
	return resp
}

type productResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Slug            string          `json:"slug"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	Composition     string          `json:"composition"`
	Weight          string          `json:"weight"`
	Price           decimal.Decimal `json:"price"`
	Image           string          `json:"image"`
	Available       bool            `json:"isAvailable"`
	Promoted        bool            `json:"isPromotion"`
	DiscountPercent int             `json:"discountPercent"`
	Position        int             `json:"position"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func toProductResponse(p *catalog.Product) productResponse {
	return productResponse{
		ID:              p.ID,
		Name:            p.Name,
		Slug:            p.Slug,
		Category:        p.CategoryID,
		Description:     p.Description,
		Composition:     p.Composition,
		Weight:          p.Weight,
		Price:           p.Price,
		Image:           p.Image,
		Available:       p.Available,
		Promoted:        p.Promoted,
		DiscountPercent: p.DiscountPercent,
		Position:        p.Position,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

type promotionResponse struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	DiscountPercent int             `json:"discountPercent"`
	MinOrderTotal   decimal.Decimal `json:"minOrderTotal"`
	ActiveFrom      *time.Time      `json:"activeFrom"`
	ActiveTo        *time.Time      `json:"activeTo"`
	Active          bool            `json:"isActive"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func toPromotionResponse(p *promotion.Promotion) promotionResponse {
	return promotionResponse{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		DiscountPercent: p.DiscountPercent,
		MinOrderTotal:   p.MinOrderSubtotal,
		ActiveFrom:      p.ActiveFrom,
		ActiveTo:        p.ActiveTo,
		Active:          p.Enabled,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// userResponse never carries the password hash.
type userResponse struct {
	ID        string    `json:"id"`
	Login     string    `json:"login"`
	Role      user.Role `json:"role"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Login:     u.Login,
		Role:      u.Role,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type statsResponse struct {
	Today struct {
		Revenue     decimal.Decimal `json:"revenue"`
		OrdersCount int             `json:"ordersCount"`
		AvgCheck    decimal.Decimal `json:"avgCheck"`
	} `json:"today"`
	ActiveOrders []order.Order `json:"activeOrders"`
}

func toStatsResponse(s *order.DailyStats) statsResponse {
	var resp statsResponse
	resp.Today.Revenue = s.Revenue
	resp.Today.OrdersCount = s.OrdersCount
	resp.Today.AvgCheck = s.AverageCheck
	resp.ActiveOrders = s.ActiveOrders
	if resp.ActiveOrders == nil {
		resp.ActiveOrders = []order.Order{}
	}
	return resp
}

// mapSlice converts every element of in, returning an empty (not nil)
// slice so lists encode as [].
func mapSlice[T, R any](in []T, conv func(*T) R) []R {
	out := make([]R, len(in))
	for i := range in {
		out[i] = conv(&in[i])
	}
	return out
}
