package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/service"
)

type CartHandler struct {
	cartService service.ICartService
}

func NewCartHandler(cartService service.ICartService) *CartHandler {
	if cartService == nil {
		panic("cartService cannot be nil")
	}
	return &CartHandler{cartService: cartService}
}

// AddLine POST /cart
func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberID(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	var req dto.AddCartLineRequest
	if err := decodeBody(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	selector, err := parseSelector(req.OptionID)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	lineID, err := h.cartService.AddLine(r.Context(), memberID, req.ProductID, selector, req.Qty())
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, dto.AddCartLineResponse{CartLineID: lineID})
}

// GetCart GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberID(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	view, err := h.cartService.GetCart(r.Context(), memberID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, view)
}

// UpdateQuantity PUT /cart/{id}/quantity
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberID(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	lineID, err := pathID(r, "id")
	if err != nil {
		api.WriteError(w, err)
		return
	}
	var req dto.UpdateQuantityRequest
	if err := decodeBody(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}

	if err := h.cartService.UpdateQuantity(r.Context(), memberID, lineID, req.Quantity); err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, nil)
}

// ChangeOption PUT /cart/{id}/option
func (h *CartHandler) ChangeOption(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberID(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	lineID, err := pathID(r, "id")
	if err != nil {
		api.WriteError(w, err)
		return
	}
	var req dto.ChangeOptionRequest
	if err := decodeBody(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	selector, err := parseSelector(req.OptionID)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	if err := h.cartService.ChangeOption(r.Context(), memberID, lineID, selector); err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, nil)
}

// RemoveLine DELETE /cart/{id}
func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberID(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	lineID, err := pathID(r, "id")
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if err := h.cartService.RemoveLine(r.Context(), memberID, lineID); err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, nil)
}

// Clear DELETE /cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberID(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if err := h.cartService.Clear(r.Context(), memberID); err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, nil)
}
