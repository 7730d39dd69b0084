package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model/event"
	"github.com/RoyceAzure/lab/storefront/internal/infra/payment"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// 金流回報的付款完成狀態, 比對時不分大小寫
const paidStatus = "paid"

type ICheckoutService interface {
	CheckoutImmediate(ctx context.Context, memberID, addressID int64) (*OrderSummary, error)
	CheckoutReserve(ctx context.Context, memberID, addressID int64) (*Reservation, error)
	CheckoutSettle(ctx context.Context, orderID int64, paymentID string, reportedAmount decimal.Decimal, reportedStatus string) (*OrderSummary, error)
	SettlePayment(ctx context.Context, orderID int64, paymentID string) (*OrderSummary, error)
	GetOrder(ctx context.Context, memberID, orderID int64) (*OrderSummary, error)
	ListOrders(ctx context.Context, memberID int64) ([]OrderSummary, error)
}

type OrderItemSummary struct {
	ProductID   int64           `json:"product_id"`
	OptionID    *int64          `json:"option_id,omitempty"`
	ProductName string          `json:"product_name"`
	MainImg     string          `json:"main_img"`
	OptionValue string          `json:"option_value,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type OrderSummary struct {
	OrderID       int64                  `json:"order_id"`
	OrderNumber   string                 `json:"order_number"`
	Status        model.OrderStatus      `json:"status"`
	PaymentMethod model.PaymentMethod    `json:"payment_method"`
	PaymentID     string                 `json:"payment_id,omitempty"`
	TotalPrice    decimal.Decimal        `json:"total_price"`
	Shipping      model.ShippingSnapshot `json:"shipping"`
	Items         []OrderItemSummary     `json:"items"`
	CreatedAt     time.Time              `json:"created_at"`
}

type Reservation struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	AmountDue   decimal.Decimal `json:"amount_due"`
}

type CheckoutService struct {
	guard      *ConcurrencyGuard
	ledger     StockLedger
	pricing    PricingResolver
	gateway    payment.Gateway
	orderTopic string
	metrics    *metrics.ServerMetrics
	logger     zerolog.Logger
}

func NewCheckoutService(guard *ConcurrencyGuard, gateway payment.Gateway, orderTopic string, m *metrics.ServerMetrics, logger zerolog.Logger) *CheckoutService {
	if guard == nil {
		panic("guard cannot be nil")
	}
	if gateway == nil {
		panic("gateway cannot be nil")
	}
	return &CheckoutService{
		guard:      guard,
		gateway:    gateway,
		orderTopic: orderTopic,
		metrics:    m,
		logger:     logger,
	}
}

// CheckoutImmediate 以點數付款, 扣點、建單、扣庫存、清空購物車在同一個交易完成
func (s *CheckoutService) CheckoutImmediate(ctx context.Context, memberID, addressID int64) (*OrderSummary, error) {
	var summary *OrderSummary
	err := s.guard.Run(ctx, "checkout.immediate", func(tx db.UnifiedDB) error {
		member, err := tx.LockMember(ctx, memberID)
		if err != nil {
			return notFoundAs(err, apperror.NotFound("member %d not found", memberID))
		}
		plan, err := s.prepare(ctx, tx, memberID, true)
		if err != nil {
			return err
		}
		shipping, err := s.shippingSnapshot(ctx, tx, memberID, addressID)
		if err != nil {
			return err
		}

		cost := plan.pointCost()
		if member.Point < cost {
			return apperror.InsufficientBalance(member.Point, cost)
		}
		if err := tx.UpdateMemberPoint(ctx, memberID, member.Point-cost); err != nil {
			return err
		}

		order := &model.Order{
			MemberID:      memberID,
			OrderNumber:   model.NewOrderNumber(),
			TotalPrice:    plan.total,
			Status:        model.OrderStatusPaid,
			PaymentMethod: model.PaymentMethodPoint,
			Shipping:      shipping,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		summary, err = s.fulfil(ctx, tx, order, plan)
		return err
	})
	s.observe("immediate", err)
	if err != nil {
		logFailure(s.logger.With().Int64("member_id", memberID).Logger(), "checkout.immediate", err)
		return nil, err
	}
	s.logger.Info().
		Int64("member_id", memberID).
		Str("order_number", summary.OrderNumber).
		Str("total", summary.TotalPrice.String()).
		Msg("point checkout completed")
	return summary, nil
}

// CheckoutReserve 刷卡第一階段: 只建立 READY 訂單回報應付金額
// 不鎖庫存、不扣庫存、不動購物車, 付款前庫存可能被別人買走, 第二階段會再驗證
func (s *CheckoutService) CheckoutReserve(ctx context.Context, memberID, addressID int64) (*Reservation, error) {
	var reservation *Reservation
	err := s.guard.Run(ctx, "checkout.reserve", func(tx db.UnifiedDB) error {
		if _, err := tx.GetMemberByID(ctx, memberID); err != nil {
			return notFoundAs(err, apperror.NotFound("member %d not found", memberID))
		}
		plan, err := s.prepare(ctx, tx, memberID, false)
		if err != nil {
			return err
		}
		shipping, err := s.shippingSnapshot(ctx, tx, memberID, addressID)
		if err != nil {
			return err
		}

		order := &model.Order{
			MemberID:      memberID,
			OrderNumber:   model.NewOrderNumber(),
			TotalPrice:    plan.total,
			Status:        model.OrderStatusReady,
			PaymentMethod: model.PaymentMethodCard,
			Shipping:      shipping,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := s.writeOutbox(ctx, tx, order, event.NewOrderReservedEvent(order)); err != nil {
			return err
		}
		reservation = &Reservation{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			AmountDue:   order.TotalPrice,
		}
		return nil
	})
	s.observe("reserve", err)
	if err != nil {
		logFailure(s.logger.With().Int64("member_id", memberID).Logger(), "checkout.reserve", err)
		return nil, err
	}
	return reservation, nil
}

// CheckoutSettle 刷卡第二階段, 由金流確認觸發
// 檢查順序: 訂單狀態 -> 付款編號 -> 金額 -> 付款狀態 -> 重新驗證購物車與庫存
// 任何失敗訂單維持 READY, 購物車與庫存不變
func (s *CheckoutService) CheckoutSettle(ctx context.Context, orderID int64, paymentID string, reportedAmount decimal.Decimal, reportedStatus string) (*OrderSummary, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, apperror.Validation("payment_id is required")
	}

	var (
		summary  *OrderSummary
		memberID int64
	)
	err := s.guard.Run(ctx, "checkout.settle", func(tx db.UnifiedDB) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return notFoundAs(err, apperror.NotFound("order %d not found", orderID))
		}
		memberID = order.MemberID
		if order.Status != model.OrderStatusReady {
			return apperror.AlreadySettled(orderID)
		}
		// 同一筆付款只能結算一張訂單, 並發時由 payment_id 唯一索引擋下
		used, err := tx.GetOrderByPaymentID(ctx, paymentID)
		switch {
		case err == nil && used.ID != orderID:
			return apperror.PaymentAlreadyUsed(orderID, paymentID)
		case err != nil && !errors.Is(err, db.ErrNotFound):
			return err
		}
		if !reportedAmount.Equal(order.TotalPrice) {
			return apperror.AmountMismatch(orderID, order.TotalPrice, reportedAmount)
		}
		if !strings.EqualFold(reportedStatus, paidStatus) {
			return apperror.PaymentNotCompleted(orderID, reportedStatus)
		}

		if _, err := tx.LockMember(ctx, order.MemberID); err != nil {
			return notFoundAs(err, apperror.NotFound("member %d not found", order.MemberID))
		}
		plan, err := s.prepare(ctx, tx, order.MemberID, true)
		if err != nil {
			if apperror.Is(err, apperror.InsufficientStockCode) {
				appErr, _ := apperror.From(err)
				return appErr.AsRetryable()
			}
			return err
		}
		// 預約後購物車或價格有變, 已付金額不再等於應付金額
		if !plan.total.Equal(order.TotalPrice) {
			return apperror.AmountMismatch(orderID, order.TotalPrice, plan.total)
		}

		if err := tx.MarkOrderPaid(ctx, orderID, paymentID); err != nil {
			return err
		}
		order.Status = model.OrderStatusPaid
		order.PaymentID = &paymentID
		summary, err = s.fulfil(ctx, tx, order, plan)
		if apperror.Is(err, apperror.InsufficientStockCode) {
			appErr, _ := apperror.From(err)
			return appErr.AsRetryable()
		}
		return err
	})
	s.observe("settle", err)
	lg := s.logger.With().Int64("order_id", orderID).Str("payment_id", paymentID).Logger()
	if memberID != 0 {
		lg = lg.With().Int64("member_id", memberID).Logger()
	}
	if err != nil {
		if !apperror.Is(err, apperror.AlreadySettledCode) {
			logFailure(lg, "checkout.settle", err)
		}
		return nil, err
	}
	lg.Info().
		Str("order_number", summary.OrderNumber).
		Msg("card payment settled")
	return summary, nil
}

// SettlePayment 先在交易外向金流查詢付款結果, 再進入結算交易
func (s *CheckoutService) SettlePayment(ctx context.Context, orderID int64, paymentID string) (*OrderSummary, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, apperror.Validation("payment_id is required")
	}
	conf, err := s.gateway.Lookup(ctx, paymentID)
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", orderID).Str("payment_id", paymentID).Msg("payment lookup failed")
		return nil, apperror.GatewayUnavailable(err)
	}
	return s.CheckoutSettle(ctx, orderID, paymentID, conf.Amount, conf.Status)
}

func (s *CheckoutService) GetOrder(ctx context.Context, memberID, orderID int64) (*OrderSummary, error) {
	var summary *OrderSummary
	err := s.guard.Run(ctx, "order.get", func(tx db.UnifiedDB) error {
		order, err := tx.GetOrderByID(ctx, orderID)
		if err != nil {
			return notFoundAs(err, apperror.NotFound("order %d not found", orderID))
		}
		if order.MemberID != memberID {
			return apperror.NotFound("order %d not found", orderID)
		}
		summary = toOrderSummary(order)
		return nil
	})
	return summary, err
}

func (s *CheckoutService) ListOrders(ctx context.Context, memberID int64) ([]OrderSummary, error) {
	out := []OrderSummary{}
	err := s.guard.Run(ctx, "order.list", func(tx db.UnifiedDB) error {
		orders, err := tx.ListOrdersByMemberID(ctx, memberID)
		if err != nil {
			return err
		}
		for i := range orders {
			out = append(out, *toOrderSummary(&orders[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// fulfil 寫明細、扣庫存、清空購物車、寫 outbox
// 呼叫前 prepare(lock=true) 已取得所有選項與商品列鎖
func (s *CheckoutService) fulfil(ctx context.Context, tx db.UnifiedDB, order *model.Order, plan *checkoutPlan) (*OrderSummary, error) {
	items := plan.orderItems(order.ID)
	if err := tx.CreateOrderItems(ctx, items); err != nil {
		return nil, err
	}
	for _, pl := range plan.lines {
		if err := s.ledger.Decrement(ctx, tx, pl.product.ID, pl.line.Selector(), pl.line.Quantity); err != nil {
			return nil, err
		}
	}
	if err := tx.ClearCartLines(ctx, plan.memberID); err != nil {
		return nil, err
	}
	if err := s.writeOutbox(ctx, tx, order, event.NewOrderPaidEvent(order, items)); err != nil {
		return nil, err
	}
	order.Items = items
	return toOrderSummary(order), nil
}

func (s *CheckoutService) shippingSnapshot(ctx context.Context, tx db.UnifiedDB, memberID, addressID int64) (model.ShippingSnapshot, error) {
	address, err := tx.GetAddressByID(ctx, addressID)
	if err != nil {
		return model.ShippingSnapshot{}, notFoundAs(err, apperror.NotFound("address %d not found", addressID))
	}
	if address.MemberID != memberID {
		return model.ShippingSnapshot{}, apperror.NotFound("address %d not found", addressID)
	}
	return address.Snapshot(), nil
}

func (s *CheckoutService) writeOutbox(ctx context.Context, tx db.UnifiedDB, order *model.Order, evt event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return tx.InsertOutbox(ctx, &model.OutboxMessage{
		EventID: evt.GetID(),
		Topic:   s.orderTopic,
		Key:     strconv.FormatInt(order.ID, 10),
		Payload: payload,
	})
}

func (s *CheckoutService) observe(flow string, err error) {
	result := "ok"
	if err != nil {
		result = "internal"
		if appErr, ok := apperror.From(err); ok {
			result = strconv.Itoa(int(appErr.Code))
		}
	}
	s.metrics.ObserveCheckout(flow, result)
}

// logFailure 業務規則錯誤記 warn, 基礎設施錯誤已由 guard 記 error
func logFailure(lg zerolog.Logger, operation string, err error) {
	appErr, ok := apperror.From(err)
	if !ok || appErr.Code == apperror.InternalCode {
		return
	}
	lg.Warn().
		Str("operation", operation).
		Int("code", int(appErr.Code)).
		Bool("retryable", appErr.Retryable).
		Msg(appErr.Message)
}

func toOrderSummary(order *model.Order) *OrderSummary {
	items := make([]OrderItemSummary, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, OrderItemSummary{
			ProductID:   it.ProductID,
			OptionID:    it.OptionID,
			ProductName: it.ProductName,
			MainImg:     it.MainImg,
			OptionValue: it.OptionValue,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}
	summary := &OrderSummary{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		TotalPrice:    order.TotalPrice,
		Shipping:      order.Shipping,
		Items:         items,
		CreatedAt:     order.CreatedAt,
	}
	if order.PaymentID != nil {
		summary.PaymentID = *order.PaymentID
	}
	return summary
}

var _ ICheckoutService = (*CheckoutService)(nil)
