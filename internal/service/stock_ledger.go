package service

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
)

// StockLedger 商品與選項庫存的唯一寫入路徑
// 有選項的商品, 商品庫存永遠等於選項庫存加總
type StockLedger struct{}

// Available 可售數量, 有選項時看選項庫存
func (StockLedger) Available(product *model.Product, option *model.ProductOption) int {
	if option != nil {
		return option.Stock
	}
	return product.Stock
}

// Decrement 只能在交易內呼叫
// 有選項: 鎖選項 -> 扣選項 -> 鎖商品 -> 重新加總選項庫存寫回商品
// 沒有選項: 鎖商品 -> 直接扣
// 狀態與庫存在同一次寫入更新
func (l StockLedger) Decrement(ctx context.Context, tx db.UnifiedDB, productID int64, selector model.OptionSelector, qty int) error {
	if qty < 1 {
		return apperror.Validation("decrement quantity must be >= 1")
	}

	optionID, hasOption := selector.OptionID()
	if !hasOption {
		return l.decrementProduct(ctx, tx, productID, qty)
	}

	options, err := tx.LockOptions(ctx, []int64{optionID})
	if err != nil {
		return err
	}
	if len(options) == 0 || options[0].ProductID != productID {
		return apperror.InvalidOption(productID, "option %d not found", optionID)
	}
	option := options[0]
	if option.Stock < qty {
		return apperror.InsufficientStock(apperror.StockShortage{
			ProductID: productID,
			OptionID:  selector.Column(),
			Requested: qty,
			Available: option.Stock,
		})
	}
	if err := tx.UpdateOptionStock(ctx, option.ID, option.Stock-qty); err != nil {
		return err
	}

	if _, err := l.lockProduct(ctx, tx, productID); err != nil {
		return err
	}
	// 取得商品鎖之後才加總, 兄弟選項並行扣庫存時最後一個寫入者會看到全部結果
	sum, err := tx.SumOptionStock(ctx, productID)
	if err != nil {
		return err
	}
	return tx.UpdateProductStock(ctx, productID, sum, model.StatusForStock(sum))
}

func (l StockLedger) decrementProduct(ctx context.Context, tx db.UnifiedDB, productID int64, qty int) error {
	product, err := l.lockProduct(ctx, tx, productID)
	if err != nil {
		return err
	}
	if product.HasOptions {
		return apperror.OptionRequired(productID)
	}
	if product.Stock < qty {
		return apperror.InsufficientStock(apperror.StockShortage{
			ProductID: productID,
			Requested: qty,
			Available: product.Stock,
		})
	}
	remain := product.Stock - qty
	return tx.UpdateProductStock(ctx, productID, remain, model.StatusForStock(remain))
}

func (StockLedger) lockProduct(ctx context.Context, tx db.UnifiedDB, productID int64) (*model.Product, error) {
	products, err := tx.LockProducts(ctx, []int64{productID})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, apperror.NotFound("product %d not found", productID)
	}
	return &products[0], nil
}
