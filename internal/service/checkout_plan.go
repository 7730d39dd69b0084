package service

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/shopspring/decimal"
)

type plannedLine struct {
	line      model.CartLine
	product   *model.Product
	option    *model.ProductOption
	unitPrice decimal.Decimal
	subtotal  decimal.Decimal
}

// checkoutPlan 三種結帳流程共用的驗證結果
type checkoutPlan struct {
	memberID int64
	lines    []plannedLine
	total    decimal.Decimal
}

// prepare 讀取購物車並逐筆驗證商品、選項與庫存, 計算總價
// lock 為 true 時依 cart_lines -> product_options -> products 的順序上鎖後才驗證
func (s *CheckoutService) prepare(ctx context.Context, tx db.UnifiedDB, memberID int64, lock bool) (*checkoutPlan, error) {
	var (
		lines []model.CartLine
		err   error
	)
	if lock {
		lines, err = tx.LockCartLines(ctx, memberID)
	} else {
		lines, err = tx.ListCartLines(ctx, memberID)
	}
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperror.EmptyCart(memberID)
	}

	productIDs := make([]int64, 0, len(lines))
	optionIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		productIDs = append(productIDs, l.ProductID)
		if l.OptionID != nil {
			optionIDs = append(optionIDs, *l.OptionID)
		}
	}
	productIDs, optionIDs = sortedIDs(productIDs), sortedIDs(optionIDs)

	var (
		products []model.Product
		options  []model.ProductOption
	)
	if lock {
		if options, err = tx.LockOptions(ctx, optionIDs); err != nil {
			return nil, err
		}
		if products, err = tx.LockProducts(ctx, productIDs); err != nil {
			return nil, err
		}
	} else {
		if options, err = tx.GetOptionsByIDs(ctx, optionIDs); err != nil {
			return nil, err
		}
		if products, err = tx.GetProductsByIDs(ctx, productIDs); err != nil {
			return nil, err
		}
	}
	productMap, optionMap := indexProducts(products), indexOptions(options)

	plan := &checkoutPlan{memberID: memberID, total: decimal.Zero}
	for _, l := range lines {
		product, ok := productMap[l.ProductID]
		if !ok || !product.IsShow {
			return nil, apperror.NotFound("product %d is no longer available", l.ProductID)
		}

		var option *model.ProductOption
		switch {
		case product.HasOptions && l.OptionID == nil:
			return nil, apperror.OptionRequired(product.ID)
		case !product.HasOptions && l.OptionID != nil:
			return nil, apperror.InvalidOption(product.ID, "product has no options")
		case l.OptionID != nil:
			option, ok = optionMap[*l.OptionID]
			if !ok || option.ProductID != product.ID || !option.IsShow {
				return nil, apperror.InvalidOption(product.ID, "option %d not found", *l.OptionID)
			}
		}

		if available := s.ledger.Available(product, option); l.Quantity > available {
			return nil, apperror.InsufficientStock(apperror.StockShortage{
				ProductID: product.ID,
				OptionID:  l.OptionID,
				Requested: l.Quantity,
				Available: available,
			})
		}

		unit := s.pricing.UnitPrice(product, option)
		subtotal := unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
		plan.lines = append(plan.lines, plannedLine{
			line:      l,
			product:   product,
			option:    option,
			unitPrice: unit,
			subtotal:  subtotal,
		})
		plan.total = plan.total.Add(subtotal)
	}
	return plan, nil
}

// orderItems 產生訂單明細快照
func (p *checkoutPlan) orderItems(orderID int64) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(p.lines))
	for _, pl := range p.lines {
		item := model.OrderItem{
			OrderID:     orderID,
			ProductID:   pl.product.ID,
			OptionID:    pl.line.OptionID,
			ProductName: pl.product.Name,
			MainImg:     pl.product.MainImg,
			UnitPrice:   pl.unitPrice,
			Quantity:    pl.line.Quantity,
			Subtotal:    pl.subtotal,
		}
		if pl.option != nil {
			item.OptionValue = pl.option.OptionValue
		}
		items = append(items, item)
	}
	return items
}

// pointCost 點數為整數, 小數一律進位
func (p *checkoutPlan) pointCost() int64 {
	return p.total.Ceil().IntPart()
}
