package event

import (
	"strconv"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderItemData struct {
	ProductID   int64           `json:"product_id"`
	OptionID    *int64          `json:"option_id,omitempty"`
	ProductName string          `json:"product_name"`
	OptionValue string          `json:"option_value,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderReservedEvent 刷卡訂單已建立, 等待金流確認
type OrderReservedEvent struct {
	BaseEvent
	MemberID    int64           `json:"member_id"`
	OrderNumber string          `json:"order_number"`
	AmountDue   decimal.Decimal `json:"amount_due"`
}

func (e *OrderReservedEvent) Type() EventType {
	return OrderReservedEventName
}

// OrderPaidEvent 訂單已付款, 庫存已扣除
type OrderPaidEvent struct {
	BaseEvent
	MemberID      int64               `json:"member_id"`
	OrderNumber   string              `json:"order_number"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	PaymentID     string              `json:"payment_id,omitempty"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	Items         []OrderItemData     `json:"items"`
}

func (e *OrderPaidEvent) Type() EventType {
	return OrderPaidEventName
}

func newBaseEvent(order *model.Order, t EventType) BaseEvent {
	return BaseEvent{
		EventID:     uuid.NewString(),
		AggregateID: strconv.FormatInt(order.ID, 10),
		CreatedAt:   time.Now().UTC(),
		EventType:   t,
	}
}

func NewOrderReservedEvent(order *model.Order) *OrderReservedEvent {
	return &OrderReservedEvent{
		BaseEvent:   newBaseEvent(order, OrderReservedEventName),
		MemberID:    order.MemberID,
		OrderNumber: order.OrderNumber,
		AmountDue:   order.TotalPrice,
	}
}

func NewOrderPaidEvent(order *model.Order, items []model.OrderItem) *OrderPaidEvent {
	data := make([]OrderItemData, 0, len(items))
	for _, it := range items {
		data = append(data, OrderItemData{
			ProductID:   it.ProductID,
			OptionID:    it.OptionID,
			ProductName: it.ProductName,
			OptionValue: it.OptionValue,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}
	evt := &OrderPaidEvent{
		BaseEvent:     newBaseEvent(order, OrderPaidEventName),
		MemberID:      order.MemberID,
		OrderNumber:   order.OrderNumber,
		PaymentMethod: order.PaymentMethod,
		TotalPrice:    order.TotalPrice,
		Items:         data,
	}
	if order.PaymentID != nil {
		evt.PaymentID = *order.PaymentID
	}
	return evt
}
