package apperror

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StockShortage 庫存不足時回給呼叫端的明細
type StockShortage struct {
	ProductID int64  `json:"product_id"`
	OptionID  *int64 `json:"option_id,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type BalanceShortage struct {
	Balance  int64 `json:"balance"`
	Required int64 `json:"required"`
}

func NotFound(format string, args ...any) *AppError {
	return New(NotFoundCode, format, args...)
}

func Validation(format string, args ...any) *AppError {
	return New(ValidationCode, format, args...)
}

func OptionRequired(productID int64) *AppError {
	return New(OptionRequiredCode, "product %d requires an option", productID)
}

func InvalidOption(productID int64, format string, args ...any) *AppError {
	return New(InvalidOptionCode, "product %d: %s", productID, fmt.Sprintf(format, args...))
}

func EmptyCart(memberID int64) *AppError {
	return New(EmptyCartCode, "cart of member %d is empty", memberID)
}

func InsufficientStock(s StockShortage) *AppError {
	target := fmt.Sprintf("product %d", s.ProductID)
	if s.OptionID != nil {
		target = fmt.Sprintf("product %d option %d", s.ProductID, *s.OptionID)
	}
	return New(InsufficientStockCode, "insufficient stock for %s: requested %d, available %d", target, s.Requested, s.Available).
		WithDetail(s)
}

func InsufficientBalance(balance, required int64) *AppError {
	return New(InsufficientBalanceCode, "insufficient point balance: have %d, need %d", balance, required).
		WithDetail(BalanceShortage{Balance: balance, Required: required})
}

func ConcurrencyConflict(err error) *AppError {
	return Wrap(ConcurrencyConflictCode, err, "").AsRetryable()
}

func AlreadySettled(orderID int64) *AppError {
	return New(AlreadySettledCode, "order %d already settled", orderID)
}

func AmountMismatch(orderID int64, expected, reported decimal.Decimal) *AppError {
	return New(AmountMismatchCode, "order %d: expected amount %s, got %s", orderID, expected.String(), reported.String())
}

func PaymentNotCompleted(orderID int64, status string) *AppError {
	return New(PaymentNotCompletedCode, "order %d: payment status %q", orderID, status)
}

func Unauthenticated() *AppError {
	return New(UnauthenticatedCode, "")
}

func TooManyRequests() *AppError {
	return New(TooManyRequestsCode, "").AsRetryable()
}

func GatewayUnavailable(err error) *AppError {
	return Wrap(GatewayUnavailableCode, err, "").AsRetryable()
}

// PaymentAlreadyUsed 同一筆付款不能結算第二張訂單
func PaymentAlreadyUsed(orderID int64, paymentID string) *AppError {
	return New(PaymentAlreadyUsedCode, "payment %s already settled another order, order %d unchanged", paymentID, orderID)
}

func Internal(err error) *AppError {
	return Wrap(InternalCode, err, "")
}
