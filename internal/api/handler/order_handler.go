package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/service"
)

type OrderHandler struct {
	checkoutService service.ICheckoutService
}

func NewOrderHandler(checkoutService service.ICheckoutService) *OrderHandler {
	if checkoutService == nil {
		panic("checkoutService cannot be nil")
	}
	return &OrderHandler{checkoutService: checkoutService}
}

func (h *OrderHandler) checkoutRequest(r *http.Request) (int64, int64, error) {
	memberID, err := memberID(r)
	if err != nil {
		return 0, 0, err
	}
	var req dto.CheckoutRequest
	if err := decodeBody(r, &req); err != nil {
		return 0, 0, err
	}
	if req.AddressID <= 0 {
		return 0, 0, apperror.Validation("address_id is required")
	}
	return memberID, req.AddressID, nil
}

// Checkout POST /orders/checkout 點數付款
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	memberID, addressID, err := h.checkoutRequest(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	summary, err := h.checkoutService.CheckoutImmediate(r.Context(), memberID, addressID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, summary)
}

// CheckoutCard POST /orders/checkout/card 建立待付款訂單
func (h *OrderHandler) CheckoutCard(w http.ResponseWriter, r *http.Request) {
	memberID, addressID, err := h.checkoutRequest(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	reservation, err := h.checkoutService.CheckoutReserve(r.Context(), memberID, addressID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, reservation)
}

// ListOrders GET /orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberID(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	orders, err := h.checkoutService.ListOrders(r.Context(), memberID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, orders)
}

// GetOrder GET /orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberID(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		api.WriteError(w, err)
		return
	}
	order, err := h.checkoutService.GetOrder(r.Context(), memberID, orderID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, order)
}
