package service

import (
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
)

// PricingResolver 單價一律在使用當下由本次交易讀到的列計算, 不寫回購物車
type PricingResolver struct{}

// UnitPrice 選項有售價就用選項的, 否則沿用商品售價
func (PricingResolver) UnitPrice(product *model.Product, option *model.ProductOption) decimal.Decimal {
	if option != nil && option.SellPrice != nil {
		return *option.SellPrice
	}
	return product.SellPrice
}

func (p PricingResolver) Subtotal(product *model.Product, option *model.ProductOption, qty int) decimal.Decimal {
	return p.UnitPrice(product, option).Mul(decimal.NewFromInt(int64(qty)))
}
