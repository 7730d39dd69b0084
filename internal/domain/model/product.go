package model

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrInvalidPrice 售價高於定價
	ErrInvalidPrice = errors.New("sell price must not exceed consumer price")
	// ErrNegativeStock 庫存不可為負
	ErrNegativeStock = errors.New("stock must not be negative")
)

type ProductStatus int

// 狀態碼沿用既有資料庫的數值
const (
	ProductStatusOnSale  ProductStatus = 10
	ProductStatusSoldOut ProductStatus = 20
)

func (s ProductStatus) String() string {
	switch s {
	case ProductStatusOnSale:
		return "ON_SALE"
	case ProductStatusSoldOut:
		return "SOLD_OUT"
	default:
		return "UNKNOWN"
	}
}

// StatusForStock 庫存為 0 即售完
func StatusForStock(stock int) ProductStatus {
	if stock <= 0 {
		return ProductStatusSoldOut
	}
	return ProductStatusOnSale
}

// Product 商品
// HasOptions 為 true 時 Stock 是各選項庫存的加總, 不可直接寫入
type Product struct {
	ID            int64           `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"not null;type:varchar(100)" json:"name"`
	MainImg       string          `gorm:"type:varchar(255)" json:"main_img"`
	SellPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"sell_price"`
	ConsumerPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"consumer_price"`
	Stock         int             `gorm:"not null;default:0;check:chk_products_stock,stock >= 0" json:"stock"`
	HasOptions    bool            `gorm:"not null" json:"has_options"`
	Status        ProductStatus   `gorm:"not null" json:"status"`
	IsShow        bool            `gorm:"not null" json:"is_show"`
	Options       []ProductOption `gorm:"foreignKey:ProductID" json:"options,omitempty"`
	BaseModel
}

func (p *Product) Validate() error {
	if p.SellPrice.GreaterThan(p.ConsumerPrice) {
		return ErrInvalidPrice
	}
	if p.Stock < 0 {
		return ErrNegativeStock
	}
	return nil
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.Status == 0 {
		p.Status = StatusForStock(p.Stock)
	}
	return p.Validate()
}

// ProductOption 商品選項, 例如 顏色:紅
// SellPrice 為 nil 時沿用商品售價
type ProductOption struct {
	ID          int64            `gorm:"primaryKey" json:"id"`
	ProductID   int64            `gorm:"not null;index" json:"product_id"`
	OptionTitle string           `gorm:"not null;type:varchar(50)" json:"option_title"`
	OptionValue string           `gorm:"not null;type:varchar(50)" json:"option_value"`
	Stock       int              `gorm:"not null;default:0;check:chk_product_options_stock,stock >= 0" json:"stock"`
	SellPrice   *decimal.Decimal `gorm:"type:decimal(12,2)" json:"sell_price,omitempty"`
	IsShow      bool             `gorm:"not null" json:"is_show"`
	BaseModel
}
