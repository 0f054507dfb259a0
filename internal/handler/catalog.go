package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/tokyo-express/internal/domain/catalog"
)

type categoryRequest struct {
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	Parent   *string  `json:"parent"`
	Position flexInt  `json:"position"`
	Active   flexBool `json:"isActive"`
}

func (req categoryRequest) input() catalog.CategoryInput {
	in := catalog.CategoryInput{
		Name:     req.Name,
		Slug:     req.Slug,
		Position: int(req.Position),
		Active:   req.Active.or(true),
	}
	if req.Parent != nil {
		in.ParentID = strings.TrimSpace(*req.Parent)
	}
	return in
}

type productRequest struct {
	Name            string      `json:"name"`
	Slug            string      `json:"slug"`
	Category        string      `json:"category"`
	Description     string      `json:"description"`
	Composition     string      `json:"composition"`
	Weight          string      `json:"weight"`
	Price           flexDecimal `json:"price"`
	Image           string      `json:"image"`
	Available       flexBool    `json:"isAvailable"`
	Promoted        flexBool    `json:"isPromotion"`
	DiscountPercent flexInt     `json:"discountPercent"`
	Position        flexInt     `json:"position"`
}

func (req productRequest) input() catalog.ProductInput {
	return catalog.ProductInput{
		Name:            req.Name,
		Slug:            req.Slug,
		CategoryID:      strings.TrimSpace(req.Category),
		Description:     req.Description,
		Composition:     req.Composition,
		Weight:          req.Weight,
		Price:           req.Price.Decimal,
		Image:           req.Image,
		Available:       req.Available.or(true),
		Promoted:        req.Promoted.or(false),
		DiscountPercent: int(req.DiscountPercent),
		Position:        int(req.Position),
	}
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	h.writeCategories(w, r, true)
}

func (h *Handler) listAllCategories(w http.ResponseWriter, r *http.Request) {
	h.writeCategories(w, r, false)
}

func (h *Handler) writeCategories(w http.ResponseWriter, r *http.Request, onlyActive bool) {
	categories, err := h.catalog.ListCategories(r.Context(), onlyActive)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(categories, toCategoryResponse))
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.catalog.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listProducts serves the storefront: only available products, optionally
// narrowed by category, name substring and promotion flag.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.ProductFilter{
		OnlyAvailable: true,
		CategoryID:    q.Get("category"),
		Search:        q.Get("search"),
	}
	promoted := q.Get("promoted")
	if promoted == "" {
		promoted = q.Get("isPromotion")
	}
	if promoted != "" {
		v := promoted == "true" || promoted == "1"
		f.Promoted = &v
	}

	products, err := h.catalog.ListProducts(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(products, toProductResponse))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.CreateProduct(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
