package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/order"
	"github.com/xenking/tokyo-express/internal/domain/pricing"
)

// checkoutItem accepts both the storefront cart shape (product, qty) and
// the back-office shape (productId, quantity).
type checkoutItem struct {
	Product   string      `json:"product"`
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Price     flexDecimal `json:"price"`
	Qty       *flexInt    `json:"qty"`
	Quantity  *flexInt    `json:"quantity"`
}

func (it checkoutItem) line() pricing.Line {
	qty := 0
	switch {
	case it.Qty != nil:
		qty = int(*it.Qty)
	case it.Quantity != nil:
		qty = int(*it.Quantity)
	}
	id := strings.TrimSpace(it.ProductID)
	if id == "" {
		id = strings.TrimSpace(it.Product)
	}
	if id == "" {
		return pricing.RawLine{Name: it.Name, UnitPrice: it.Price.Decimal, Quantity: qty}
	}
	return pricing.CatalogLine{ProductID: id, Quantity: qty, Name: it.Name, UnitPrice: it.Price.Decimal}
}

type checkoutRequest struct {
	Items   []checkoutItem   `json:"items"`
	Mode    string           `json:"mode"`
	Address *pricing.Address `json:"address"`
	Phone   string           `json:"phone"`
	Comment string           `json:"comment"`
}

func (req checkoutRequest) cart() pricing.Cart {
	lines := make([]pricing.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, it.line())
	}
	return pricing.Cart{
		Lines:   lines,
		Mode:    pricing.Mode(strings.TrimSpace(req.Mode)),
		Address: req.Address,
		Phone:   strings.TrimSpace(req.Phone),
		Comment: req.Comment,
	}
}

type quoteLine struct {
	ProductID string          `json:"productId,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
	Total     decimal.Decimal `json:"total"`
	Source    pricing.Source  `json:"source"`
}

type quoteResponse struct {
	Items   []quoteLine      `json:"items"`
	Pricing pricing.Pricing  `json:"pricing"`
	Mode    pricing.Mode     `json:"mode"`
	Address *pricing.Address `json:"address,omitempty"`
}

func toQuoteResponse(q *pricing.Quote) quoteResponse {
	return quoteResponse{
		Items: mapSlice(q.Lines, func(l *pricing.PricedLine) quoteLine {
			return quoteLine{
				ProductID: l.ProductID,
				Name:      l.Name,
				Price:     l.UnitPrice,
				Qty:       l.Quantity,
				Total:     l.Total(),
				Source:    l.Source,
			}
		}),
		Pricing: q.Pricing,
		Mode:    q.Mode,
		Address: q.Address,
	}
}

func (h *Handler) quoteOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.orders.Quote(r.Context(), req.cart())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteResponse(q))
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Place(r.Context(), req.cart())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// listOrders accepts status (comma separated), mode, from, to (dates or
// RFC 3339) and limit query parameters.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseOrderFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func parseOrderFilter(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	var f order.Filter
	for _, s := range strings.Split(q.Get("status"), ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		status := order.Status(s)
		if !status.Valid() {
			return f, domain.Invalid("status", "unknown status "+strconv.Quote(s))
		}
		f.Statuses = append(f.Statuses, status)
	}
	if m := strings.TrimSpace(q.Get("mode")); m != "" {
		f.Mode = pricing.Mode(m)
		if !f.Mode.Valid() {
			return f, &pricing.InvalidModeError{Mode: m}
		}
	}
	var err error
	if f.CreatedAfter, err = parseBound(q.Get("from"), "from"); err != nil {
		return f, err
	}
	if f.CreatedBefore, err = parseBound(q.Get("to"), "to"); err != nil {
		return f, err
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, domain.Invalid("limit", "limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

func parseBound(v, field string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.Invalid(field, "invalid time "+strconv.Quote(v))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(strings.TrimSpace(req.Status)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// updateOrder re-prices the order from a full cart.
func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := h.orders.Update(r.Context(), chi.URLParam(r, "id"), req.cart())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) statsToday(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Today(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}
