package model

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusReady OrderStatus = "READY"
	OrderStatusPaid  OrderStatus = "PAID"
)

type PaymentMethod string

const (
	PaymentMethodPoint PaymentMethod = "POINT"
	PaymentMethodCard  PaymentMethod = "CARD"
)

// ShippingSnapshot 下單當下的收件資訊
type ShippingSnapshot struct {
	ReceiverName  string `gorm:"type:varchar(50)" json:"receiver_name"`
	ReceiverPhone string `gorm:"type:varchar(30)" json:"receiver_phone"`
	Address       string `gorm:"type:varchar(255)" json:"address"`
	AddressDetail string `gorm:"type:varchar(255)" json:"address_detail"`
	Zipcode       string `gorm:"type:varchar(10)" json:"zipcode"`
}

// Order 訂單, 狀態只會 READY -> PAID
// 刷卡流程在付款前先建立 READY 訂單, 此時沒有明細
type Order struct {
	ID            int64            `gorm:"primaryKey" json:"id"`
	MemberID      int64            `gorm:"not null;index" json:"member_id"`
	OrderNumber   string           `gorm:"uniqueIndex;not null;type:varchar(32)" json:"order_number"`
	TotalPrice    decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"total_price"`
	Status        OrderStatus      `gorm:"type:varchar(16);not null" json:"status"`
	PaymentMethod PaymentMethod    `gorm:"type:varchar(16);not null" json:"payment_method"`
	PaymentID     *string          `gorm:"uniqueIndex;type:varchar(64)" json:"payment_id,omitempty"`
	Shipping      ShippingSnapshot `gorm:"embedded" json:"shipping"`
	Items         []OrderItem      `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// OrderItem 訂單明細, 名稱與價格皆為下單當下的快照
type OrderItem struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	OrderID     int64           `gorm:"not null;index" json:"order_id"`
	ProductID   int64           `gorm:"not null" json:"product_id"`
	OptionID    *int64          `json:"option_id"`
	ProductName string          `gorm:"not null;type:varchar(100)" json:"product_name"`
	MainImg     string          `gorm:"type:varchar(255)" json:"main_img"`
	OptionValue string          `gorm:"type:varchar(50)" json:"option_value"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewOrderNumber ORD- 加上 16 碼 hex, 取自 uuid v4 的前 8 bytes
func NewOrderNumber() string {
	id := uuid.New()
	return "ORD-" + hex.EncodeToString(id[:8])
}
