package dto

type CheckoutRequest struct {
	AddressID int64 `json:"address_id"`
}

type VerifyPaymentRequest struct {
	OrderID   int64  `json:"order_id"`
	PaymentID string `json:"payment_id"`
}
