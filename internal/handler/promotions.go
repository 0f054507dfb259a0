package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/tokyo-express/internal/domain/promotion"
)

type promotionRequest struct {
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	DiscountPercent flexInt     `json:"discountPercent"`
	MinOrderTotal   flexDecimal `json:"minOrderTotal"`
	ActiveFrom      flexTime    `json:"activeFrom"`
	ActiveTo        flexTime    `json:"activeTo"`
	Active          flexBool    `json:"isActive"`
}

func (req promotionRequest) input() promotion.Input {
	return promotion.Input{
		Title:            req.Title,
		Description:      req.Description,
		DiscountPercent:  int(req.DiscountPercent),
		MinOrderSubtotal: req.MinOrderTotal.Decimal,
		ActiveFrom:       req.ActiveFrom.Time,
		ActiveTo:         req.ActiveTo.Time,
		Enabled:          req.Active.or(true),
	}
}

func (h *Handler) listActivePromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := h.promotions.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(promotions, toPromotionResponse))
}

func (h *Handler) listAllPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := h.promotions.ListAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(promotions, toPromotionResponse))
}

func (h *Handler) getPromotion(w http.ResponseWriter, r *http.Request) {
	p, err := h.promotions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

func (h *Handler) createPromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.promotions.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPromotionResponse(p))
}

func (h *Handler) updatePromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.promotions.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

func (h *Handler) deletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := h.promotions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
