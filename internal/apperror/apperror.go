package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Code int

const (
	InternalCode Code = 1000 + iota
	NotFoundCode
	ValidationCode
	OptionRequiredCode
	InvalidOptionCode
	EmptyCartCode
	InsufficientStockCode
	InsufficientBalanceCode
	ConcurrencyConflictCode
	AlreadySettledCode
	AmountMismatchCode
	PaymentNotCompletedCode
	UnauthenticatedCode
	TooManyRequestsCode
	GatewayUnavailableCode
	PaymentAlreadyUsedCode
)

var ErrStrMap = map[Code]string{
	InternalCode:            "internal server error",
	NotFoundCode:            "resource not found",
	ValidationCode:          "invalid request",
	OptionRequiredCode:      "product option is required",
	InvalidOptionCode:       "invalid product option",
	EmptyCartCode:           "cart is empty",
	InsufficientStockCode:   "insufficient stock",
	InsufficientBalanceCode: "insufficient point balance",
	ConcurrencyConflictCode: "resource is busy, please retry",
	AlreadySettledCode:      "order already settled",
	AmountMismatchCode:      "paid amount does not match order total",
	PaymentNotCompletedCode: "payment not completed",
	UnauthenticatedCode:     "unauthenticated",
	TooManyRequestsCode:     "too many requests",
	GatewayUnavailableCode:  "payment gateway unavailable",
	PaymentAlreadyUsedCode:  "payment already used by another order",
}

// 重複的付款回呼不是錯誤, 回 200 讓金流端停止重送
var httpStatusMap = map[Code]int{
	InternalCode:            http.StatusInternalServerError,
	NotFoundCode:            http.StatusNotFound,
	ValidationCode:          http.StatusBadRequest,
	OptionRequiredCode:      http.StatusBadRequest,
	InvalidOptionCode:       http.StatusBadRequest,
	EmptyCartCode:           http.StatusBadRequest,
	InsufficientStockCode:   http.StatusConflict,
	InsufficientBalanceCode: http.StatusPaymentRequired,
	ConcurrencyConflictCode: http.StatusConflict,
	AlreadySettledCode:      http.StatusOK,
	AmountMismatchCode:      http.StatusBadRequest,
	PaymentNotCompletedCode: http.StatusBadRequest,
	UnauthenticatedCode:     http.StatusUnauthorized,
	TooManyRequestsCode:     http.StatusTooManyRequests,
	GatewayUnavailableCode:  http.StatusBadGateway,
	PaymentAlreadyUsedCode:  http.StatusConflict,
}

// AppError 帶代碼的錯誤, service 層在交易邊界統一轉成此型別
type AppError struct {
	Code      Code
	Message   string
	Retryable bool
	Detail    any
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatusMap[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithDetail 附加給呼叫端的額外資訊
func (e *AppError) WithDetail(detail any) *AppError {
	e.Detail = detail
	return e
}

// AsRetryable 標記呼叫端可以重試
func (e *AppError) AsRetryable() *AppError {
	e.Retryable = true
	return e
}

func New(code Code, format string, args ...any) *AppError {
	msg := ErrStrMap[code]
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &AppError{Code: code, Message: msg}
}

func Wrap(code Code, err error, format string, args ...any) *AppError {
	e := New(code, format, args...)
	e.Err = err
	return e
}

// From 取出錯誤鏈上的 AppError
func From(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func Is(err error, code Code) bool {
	appErr, ok := From(err)
	return ok && appErr.Code == code
}

func IsRetryable(err error) bool {
	appErr, ok := From(err)
	return ok && appErr.Retryable
}
