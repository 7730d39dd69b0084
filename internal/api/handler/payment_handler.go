package handler

import (
	"net/http"

	"github.com/RoyceAzure/lab/storefront/internal/api"
	"github.com/RoyceAzure/lab/storefront/internal/api/dto"
	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/service"
)

type PaymentHandler struct {
	checkoutService service.ICheckoutService
}

func NewPaymentHandler(checkoutService service.ICheckoutService) *PaymentHandler {
	if checkoutService == nil {
		panic("checkoutService cannot be nil")
	}
	return &PaymentHandler{checkoutService: checkoutService}
}

// Verify POST /payments/verify
// 付款結果一律向金流重新查詢, 不採信前端帶來的金額
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		api.WriteError(w, err)
		return
	}
	if req.OrderID <= 0 || req.PaymentID == "" {
		api.WriteError(w, apperror.Validation("order_id and payment_id are required"))
		return
	}

	summary, err := h.checkoutService.SettlePayment(r.Context(), req.OrderID, req.PaymentID)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.SuccessJSON(w, summary)
}
