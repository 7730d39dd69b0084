package service

import (
	"context"
	"errors"

	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/shopspring/decimal"
)

type ICartService interface {
	AddLine(ctx context.Context, memberID, productID int64, selector model.OptionSelector, qty int) (int64, error)
	UpdateQuantity(ctx context.Context, memberID, lineID int64, qty int) error
	ChangeOption(ctx context.Context, memberID, lineID int64, selector model.OptionSelector) error
	RemoveLine(ctx context.Context, memberID, lineID int64) error
	Clear(ctx context.Context, memberID int64) error
	GetCart(ctx context.Context, memberID int64) (*CartView, error)
}

type CartLineView struct {
	LineID      int64           `json:"line_id"`
	ProductID   int64           `json:"product_id"`
	OptionID    *int64          `json:"option_id,omitempty"`
	ProductName string          `json:"product_name"`
	MainImg     string          `json:"main_img"`
	OptionTitle string          `json:"option_title,omitempty"`
	OptionValue string          `json:"option_value,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Available   int             `json:"available"`
	SoldOut     bool            `json:"sold_out"`
	Unavailable bool            `json:"unavailable"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type CartView struct {
	MemberID      int64           `json:"member_id"`
	Lines         []CartLineView  `json:"lines"`
	TotalQuantity int             `json:"total_quantity"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

type CartService struct {
	guard   *ConcurrencyGuard
	ledger  StockLedger
	pricing PricingResolver
}

func NewCartService(guard *ConcurrencyGuard) *CartService {
	if guard == nil {
		panic("guard cannot be nil")
	}
	return &CartService{guard: guard}
}

// AddLine 同一個 (商品, 選項) 只會有一筆, 重複加入合併數量
// 只做庫存軟檢查, 不保留庫存, 結帳時會再驗一次
func (s *CartService) AddLine(ctx context.Context, memberID, productID int64, selector model.OptionSelector, qty int) (int64, error) {
	if qty < 1 {
		return 0, apperror.Validation("quantity must be >= 1")
	}

	var lineID int64
	err := s.guard.Run(ctx, "cart.add_line", func(tx db.UnifiedDB) error {
		// 會員列鎖讓同一會員的新增互斥, 避免兩筆同鍵的明細同時插入
		if _, err := tx.LockMember(ctx, memberID); err != nil {
			return notFoundAs(err, apperror.NotFound("member %d not found", memberID))
		}

		existing, err := tx.FindCartLine(ctx, memberID, productID, selector)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}
		if existing != nil {
			existing, err = tx.LockCartLine(ctx, existing.ID)
			if err != nil && !errors.Is(err, db.ErrNotFound) {
				return err
			}
		}

		product, option, err := s.resolve(ctx, tx, productID, selector)
		if err != nil {
			return err
		}

		merged := qty
		if existing != nil {
			merged += existing.Quantity
		}
		if available := s.ledger.Available(product, option); merged > available {
			return apperror.InsufficientStock(apperror.StockShortage{
				ProductID: productID,
				OptionID:  selector.Column(),
				Requested: merged,
				Available: available,
			})
		}

		if existing != nil {
			existing.Quantity = merged
			lineID = existing.ID
			return tx.UpdateCartLine(ctx, existing)
		}
		line := &model.CartLine{
			MemberID:  memberID,
			ProductID: productID,
			OptionID:  selector.Column(),
			Quantity:  qty,
		}
		if err := tx.CreateCartLine(ctx, line); err != nil {
			return err
		}
		lineID = line.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return lineID, nil
}

// UpdateQuantity 先鎖明細列, 再讀即時庫存
func (s *CartService) UpdateQuantity(ctx context.Context, memberID, lineID int64, qty int) error {
	if qty < 1 {
		return apperror.Validation("quantity must be >= 1")
	}
	return s.guard.Run(ctx, "cart.update_quantity", func(tx db.UnifiedDB) error {
		line, err := s.lockOwnedLine(ctx, tx, memberID, lineID)
		if err != nil {
			return err
		}
		product, option, err := s.resolve(ctx, tx, line.ProductID, line.Selector())
		if err != nil {
			return err
		}
		if available := s.ledger.Available(product, option); qty > available {
			return apperror.InsufficientStock(apperror.StockShortage{
				ProductID: line.ProductID,
				OptionID:  line.OptionID,
				Requested: qty,
				Available: available,
			})
		}
		line.Quantity = qty
		return tx.UpdateCartLine(ctx, line)
	})
}

// ChangeOption 目標鍵已有明細時合併, 來源明細刪除
func (s *CartService) ChangeOption(ctx context.Context, memberID, lineID int64, selector model.OptionSelector) error {
	if selector.IsNone() {
		return apperror.Validation("option is required")
	}
	return s.guard.Run(ctx, "cart.change_option", func(tx db.UnifiedDB) error {
		if _, err := tx.LockMember(ctx, memberID); err != nil {
			return notFoundAs(err, apperror.NotFound("member %d not found", memberID))
		}

		peek, err := tx.GetCartLineByID(ctx, lineID)
		if err != nil {
			return notFoundAs(err, apperror.NotFound("cart line %d not found", lineID))
		}
		if peek.MemberID != memberID {
			return apperror.NotFound("cart line %d not found", lineID)
		}
		if peek.Selector().Equal(selector) {
			return nil
		}

		dest, err := tx.FindCartLine(ctx, memberID, peek.ProductID, selector)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return err
		}

		// 來源與目標依 id 遞增上鎖
		ids := []int64{lineID}
		if dest != nil {
			ids = append(ids, dest.ID)
		}
		locked := make(map[int64]*model.CartLine, len(ids))
		for _, id := range sortedIDs(ids) {
			l, err := tx.LockCartLine(ctx, id)
			if errors.Is(err, db.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			locked[id] = l
		}
		src, ok := locked[lineID]
		if !ok || src.MemberID != memberID {
			return apperror.NotFound("cart line %d not found", lineID)
		}
		if dest != nil {
			dest = locked[dest.ID]
		}

		product, err := s.visibleProduct(ctx, tx, src.ProductID)
		if err != nil {
			return err
		}
		if !product.HasOptions {
			return apperror.Validation("product %d has no options", product.ID)
		}
		option, err := s.visibleOption(ctx, tx, product, selector)
		if err != nil {
			return err
		}

		need := src.Quantity
		if dest != nil {
			need += dest.Quantity
		}
		if available := s.ledger.Available(product, option); need > available {
			return apperror.InsufficientStock(apperror.StockShortage{
				ProductID: product.ID,
				OptionID:  selector.Column(),
				Requested: need,
				Available: available,
			})
		}

		if dest != nil {
			dest.Quantity = need
			if err := tx.DeleteCartLine(ctx, memberID, src.ID); err != nil {
				return err
			}
			return tx.UpdateCartLine(ctx, dest)
		}
		src.OptionID = selector.Column()
		return tx.UpdateCartLine(ctx, src)
	})
}

// RemoveLine 明細不存在也視為成功
func (s *CartService) RemoveLine(ctx context.Context, memberID, lineID int64) error {
	return s.guard.Run(ctx, "cart.remove_line", func(tx db.UnifiedDB) error {
		return tx.DeleteCartLine(ctx, memberID, lineID)
	})
}

func (s *CartService) Clear(ctx context.Context, memberID int64) error {
	return s.guard.Run(ctx, "cart.clear", func(tx db.UnifiedDB) error {
		return tx.ClearCartLines(ctx, memberID)
	})
}

// GetCart 顯示用, 價格與庫存都是即時值
func (s *CartService) GetCart(ctx context.Context, memberID int64) (*CartView, error) {
	view := &CartView{MemberID: memberID, Lines: []CartLineView{}, TotalPrice: decimal.Zero}
	err := s.guard.Run(ctx, "cart.get", func(tx db.UnifiedDB) error {
		lines, err := tx.ListCartLines(ctx, memberID)
		if err != nil {
			return err
		}
		productIDs := make([]int64, 0, len(lines))
		optionIDs := make([]int64, 0, len(lines))
		for _, l := range lines {
			productIDs = append(productIDs, l.ProductID)
			if l.OptionID != nil {
				optionIDs = append(optionIDs, *l.OptionID)
			}
		}
		products, err := tx.GetProductsByIDs(ctx, sortedIDs(productIDs))
		if err != nil {
			return err
		}
		options, err := tx.GetOptionsByIDs(ctx, sortedIDs(optionIDs))
		if err != nil {
			return err
		}
		productMap, optionMap := indexProducts(products), indexOptions(options)

		for _, l := range lines {
			v := CartLineView{LineID: l.ID, ProductID: l.ProductID, OptionID: l.OptionID, Quantity: l.Quantity}
			product, ok := productMap[l.ProductID]
			if !ok || !product.IsShow {
				v.Unavailable = true
				view.Lines = append(view.Lines, v)
				continue
			}
			var option *model.ProductOption
			if l.OptionID != nil {
				option, ok = optionMap[*l.OptionID]
				if !ok || !option.IsShow {
					v.Unavailable = true
					v.ProductName = product.Name
					view.Lines = append(view.Lines, v)
					continue
				}
				v.OptionTitle = option.OptionTitle
				v.OptionValue = option.OptionValue
			}
			v.ProductName = product.Name
			v.MainImg = product.MainImg
			v.UnitPrice = s.pricing.UnitPrice(product, option)
			v.Available = s.ledger.Available(product, option)
			v.SoldOut = v.Available <= 0
			v.Subtotal = v.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))

			view.TotalQuantity += l.Quantity
			view.TotalPrice = view.TotalPrice.Add(v.Subtotal)
			view.Lines = append(view.Lines, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *CartService) lockOwnedLine(ctx context.Context, tx db.UnifiedDB, memberID, lineID int64) (*model.CartLine, error) {
	line, err := tx.LockCartLine(ctx, lineID)
	if err != nil {
		return nil, notFoundAs(err, apperror.NotFound("cart line %d not found", lineID))
	}
	if line.MemberID != memberID {
		return nil, apperror.NotFound("cart line %d not found", lineID)
	}
	return line, nil
}

// resolve 驗證商品與選項組合
// 有選項的商品必須指定選項, 沒有選項的商品不可帶選項
func (s *CartService) resolve(ctx context.Context, tx db.UnifiedDB, productID int64, selector model.OptionSelector) (*model.Product, *model.ProductOption, error) {
	product, err := s.visibleProduct(ctx, tx, productID)
	if err != nil {
		return nil, nil, err
	}
	if !product.HasOptions {
		if !selector.IsNone() {
			return nil, nil, apperror.InvalidOption(productID, "product has no options")
		}
		return product, nil, nil
	}
	if selector.IsNone() {
		return nil, nil, apperror.OptionRequired(productID)
	}
	option, err := s.visibleOption(ctx, tx, product, selector)
	if err != nil {
		return nil, nil, err
	}
	return product, option, nil
}

func (s *CartService) visibleProduct(ctx context.Context, tx db.UnifiedDB, productID int64) (*model.Product, error) {
	product, err := tx.GetProductByID(ctx, productID)
	if err != nil {
		return nil, notFoundAs(err, apperror.NotFound("product %d not found", productID))
	}
	if !product.IsShow {
		return nil, apperror.NotFound("product %d not found", productID)
	}
	return product, nil
}

func (s *CartService) visibleOption(ctx context.Context, tx db.UnifiedDB, product *model.Product, selector model.OptionSelector) (*model.ProductOption, error) {
	optionID, _ := selector.OptionID()
	option, err := tx.GetOptionByID(ctx, optionID)
	if err != nil {
		return nil, notFoundAs(err, apperror.InvalidOption(product.ID, "option %d not found", optionID))
	}
	if option.ProductID != product.ID || !option.IsShow {
		return nil, apperror.InvalidOption(product.ID, "option %d not found", optionID)
	}
	return option, nil
}

func indexProducts(products []model.Product) map[int64]*model.Product {
	m := make(map[int64]*model.Product, len(products))
	for i := range products {
		m[products[i].ID] = &products[i]
	}
	return m
}

func indexOptions(options []model.ProductOption) map[int64]*model.ProductOption {
	m := make(map[int64]*model.ProductOption, len(options))
	for i := range options {
		m[options[i].ID] = &options[i]
	}
	return m
}

var _ ICartService = (*CartService)(nil)
