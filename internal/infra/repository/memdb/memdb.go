// Package memdb 是 db.UnifiedDB 的記憶體實作
// 列鎖、交易隔離與唯一鍵的行為比照 postgres (read committed + select for update)
// 用於測試與 STORE_BACKEND=memory 的本機執行
package memdb

import (
	"context"
	"errors"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
)

type MemDB struct {
	store *store
	tx    *memTx
}

// New lockTimeout 為等待列鎖的上限, 0 代表無限等待
func New(lockTimeout time.Duration) *MemDB {
	return &MemDB{store: newStore(lockTimeout)}
}

func (m *MemDB) InitMigrate() error {
	return nil
}

func (m *MemDB) Transaction(ctx context.Context, fn func(tx db.UnifiedDB) error) (err error) {
	if m.tx != nil {
		return fn(m)
	}
	tx := m.store.begin()
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()
	if err := fn(&MemDB{store: m.store, tx: tx}); err != nil {
		tx.rollback()
		return err
	}
	return tx.commit()
}

// exec 在交易外呼叫時, 每個操作自成一個交易
func (m *MemDB) exec(fn func(tx *memTx) error) error {
	if m.tx != nil {
		return fn(m.tx)
	}
	tx := m.store.begin()
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return tx.commit()
}

// Member

func (m *MemDB) CreateMember(ctx context.Context, member *model.Member) error {
	return m.exec(func(tx *memTx) error {
		member.ID = m.store.nextID(tableMembers)
		member.Touch(time.Now())
		tx.put(tableMembers, member.ID, *member)
		return nil
	})
}

func (m *MemDB) GetMemberByID(ctx context.Context, id int64) (*model.Member, error) {
	var out *model.Member
	err := m.exec(func(tx *memTx) error {
		v, ok := get[model.Member](tx, tableMembers, id)
		if !ok {
			return db.ErrNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

func (m *MemDB) LockMember(ctx context.Context, id int64) (*model.Member, error) {
	var out *model.Member
	err := m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.Member](ctx, tx, tableMembers, id)
		if err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

func (m *MemDB) UpdateMemberPoint(ctx context.Context, id int64, point int64) error {
	return m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.Member](ctx, tx, tableMembers, id)
		if err != nil {
			return err
		}
		v.Point = point
		v.UpdatedAt = time.Now()
		tx.put(tableMembers, id, v)
		return nil
	})
}

// Address

func (m *MemDB) CreateAddress(ctx context.Context, address *model.MemberAddress) error {
	return m.exec(func(tx *memTx) error {
		address.ID = m.store.nextID(tableAddresses)
		address.Touch(time.Now())
		tx.put(tableAddresses, address.ID, *address)
		return nil
	})
}

func (m *MemDB) GetAddressByID(ctx context.Context, id int64) (*model.MemberAddress, error) {
	var out *model.MemberAddress
	err := m.exec(func(tx *memTx) error {
		v, ok := get[model.MemberAddress](tx, tableAddresses, id)
		if !ok {
			return db.ErrNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

// Product

func (m *MemDB) CreateProduct(ctx context.Context, product *model.Product) error {
	if product.Status == 0 {
		product.Status = model.StatusForStock(product.Stock)
	}
	if err := product.Validate(); err != nil {
		return err
	}
	return m.exec(func(tx *memTx) error {
		now := time.Now()
		product.ID = m.store.nextID(tableProducts)
		product.Touch(now)
		for i := range product.Options {
			opt := &product.Options[i]
			opt.ID = m.store.nextID(tableOptions)
			opt.ProductID = product.ID
			opt.Touch(now)
			tx.put(tableOptions, opt.ID, *opt)
		}
		row := *product
		row.Options = nil
		tx.put(tableProducts, product.ID, row)
		return nil
	})
}

func (m *MemDB) CreateProductOption(ctx context.Context, option *model.ProductOption) error {
	if option.Stock < 0 {
		return db.ErrConstraint
	}
	return m.exec(func(tx *memTx) error {
		option.ID = m.store.nextID(tableOptions)
		option.Touch(time.Now())
		tx.put(tableOptions, option.ID, *option)
		return nil
	})
}

func (m *MemDB) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	var out *model.Product
	err := m.exec(func(tx *memTx) error {
		v, ok := get[model.Product](tx, tableProducts, id)
		if !ok {
			return db.ErrNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

func (m *MemDB) GetProductsByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	var out []model.Product
	err := m.exec(func(tx *memTx) error {
		out = getMany[model.Product](tx, tableProducts, ids)
		return nil
	})
	return out, err
}

func (m *MemDB) LockProducts(ctx context.Context, ids []int64) ([]model.Product, error) {
	var out []model.Product
	err := m.exec(func(tx *memTx) error {
		var err error
		out, err = lockMany[model.Product](ctx, tx, tableProducts, ids)
		return err
	})
	return out, err
}

func (m *MemDB) GetOptionByID(ctx context.Context, id int64) (*model.ProductOption, error) {
	var out *model.ProductOption
	err := m.exec(func(tx *memTx) error {
		v, ok := get[model.ProductOption](tx, tableOptions, id)
		if !ok {
			return db.ErrNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

func (m *MemDB) GetOptionsByIDs(ctx context.Context, ids []int64) ([]model.ProductOption, error) {
	var out []model.ProductOption
	err := m.exec(func(tx *memTx) error {
		out = getMany[model.ProductOption](tx, tableOptions, ids)
		return nil
	})
	return out, err
}

func (m *MemDB) LockOptions(ctx context.Context, ids []int64) ([]model.ProductOption, error) {
	var out []model.ProductOption
	err := m.exec(func(tx *memTx) error {
		var err error
		out, err = lockMany[model.ProductOption](ctx, tx, tableOptions, ids)
		return err
	})
	return out, err
}

func (m *MemDB) ListOptionsByProductID(ctx context.Context, productID int64) ([]model.ProductOption, error) {
	var out []model.ProductOption
	err := m.exec(func(tx *memTx) error {
		out = scan(tx, tableOptions, func(o model.ProductOption) bool { return o.ProductID == productID })
		return nil
	})
	return out, err
}

func (m *MemDB) SumOptionStock(ctx context.Context, productID int64) (int, error) {
	sum := 0
	err := m.exec(func(tx *memTx) error {
		for _, o := range scan(tx, tableOptions, func(o model.ProductOption) bool { return o.ProductID == productID }) {
			sum += o.Stock
		}
		return nil
	})
	return sum, err
}

func (m *MemDB) UpdateOptionStock(ctx context.Context, optionID int64, stock int) error {
	if stock < 0 {
		return db.ErrConstraint
	}
	return m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.ProductOption](ctx, tx, tableOptions, optionID)
		if err != nil {
			return err
		}
		v.Stock = stock
		v.UpdatedAt = time.Now()
		tx.put(tableOptions, optionID, v)
		return nil
	})
}

func (m *MemDB) UpdateProductStock(ctx context.Context, productID int64, stock int, status model.ProductStatus) error {
	if stock < 0 {
		return db.ErrConstraint
	}
	return m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.Product](ctx, tx, tableProducts, productID)
		if err != nil {
			return err
		}
		v.Stock = stock
		v.Status = status
		v.UpdatedAt = time.Now()
		tx.put(tableProducts, productID, v)
		return nil
	})
}

// Cart

func (m *MemDB) CreateCartLine(ctx context.Context, line *model.CartLine) error {
	if line.Quantity < 1 {
		return db.ErrConstraint
	}
	return m.exec(func(tx *memTx) error {
		key := line.Key()
		dup := scan(tx, tableCartLines, func(l model.CartLine) bool { return l.Key() == key })
		if len(dup) > 0 {
			return db.ErrDuplicateKey
		}
		now := time.Now()
		line.ID = m.store.nextID(tableCartLines)
		line.CreatedAt = now
		line.UpdatedAt = now
		tx.put(tableCartLines, line.ID, *line)
		return nil
	})
}

func (m *MemDB) GetCartLineByID(ctx context.Context, id int64) (*model.CartLine, error) {
	var out *model.CartLine
	err := m.exec(func(tx *memTx) error {
		v, ok := get[model.CartLine](tx, tableCartLines, id)
		if !ok {
			return db.ErrNotFound
		}
		out = &v
		return nil
	})
	return out, err
}

func (m *MemDB) LockCartLine(ctx context.Context, id int64) (*model.CartLine, error) {
	var out *model.CartLine
	err := m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.CartLine](ctx, tx, tableCartLines, id)
		if err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

func (m *MemDB) FindCartLine(ctx context.Context, memberID, productID int64, selector model.OptionSelector) (*model.CartLine, error) {
	var out *model.CartLine
	err := m.exec(func(tx *memTx) error {
		found := scan(tx, tableCartLines, func(l model.CartLine) bool {
			return l.MemberID == memberID && l.ProductID == productID && l.Selector().Equal(selector)
		})
		if len(found) == 0 {
			return db.ErrNotFound
		}
		out = &found[0]
		return nil
	})
	return out, err
}

func (m *MemDB) ListCartLines(ctx context.Context, memberID int64) ([]model.CartLine, error) {
	var out []model.CartLine
	err := m.exec(func(tx *memTx) error {
		out = scan(tx, tableCartLines, func(l model.CartLine) bool { return l.MemberID == memberID })
		return nil
	})
	return out, err
}

func (m *MemDB) LockCartLines(ctx context.Context, memberID int64) ([]model.CartLine, error) {
	var out []model.CartLine
	err := m.exec(func(tx *memTx) error {
		lines := scan(tx, tableCartLines, func(l model.CartLine) bool { return l.MemberID == memberID })
		ids := make([]int64, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ID)
		}
		locked, err := lockMany[model.CartLine](ctx, tx, tableCartLines, ids)
		if err != nil {
			return err
		}
		// 等鎖期間可能被改到別的會員, 比照 postgres 重新檢查條件
		out = out[:0]
		for _, l := range locked {
			if l.MemberID == memberID {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

func (m *MemDB) UpdateCartLine(ctx context.Context, line *model.CartLine) error {
	if line.Quantity < 1 {
		return db.ErrConstraint
	}
	return m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.CartLine](ctx, tx, tableCartLines, line.ID)
		if err != nil {
			return err
		}
		v.Quantity = line.Quantity
		v.OptionID = line.OptionID
		v.UpdatedAt = time.Now()
		line.UpdatedAt = v.UpdatedAt
		tx.put(tableCartLines, v.ID, v)
		return nil
	})
}

func (m *MemDB) DeleteCartLine(ctx context.Context, memberID, id int64) error {
	return m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.CartLine](ctx, tx, tableCartLines, id)
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if v.MemberID == memberID {
			tx.remove(tableCartLines, id)
		}
		return nil
	})
}

func (m *MemDB) ClearCartLines(ctx context.Context, memberID int64) error {
	return m.exec(func(tx *memTx) error {
		lines := scan(tx, tableCartLines, func(l model.CartLine) bool { return l.MemberID == memberID })
		for _, l := range lines {
			v, err := lockAndGet[model.CartLine](ctx, tx, tableCartLines, l.ID)
			if errors.Is(err, db.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if v.MemberID == memberID {
				tx.remove(tableCartLines, v.ID)
			}
		}
		return nil
	})
}

// Order

func (m *MemDB) CreateOrder(ctx context.Context, order *model.Order) error {
	return m.exec(func(tx *memTx) error {
		for _, o := range scan(tx, tableOrders, func(o model.Order) bool { return o.OrderNumber == order.OrderNumber }) {
			if o.ID != order.ID {
				return db.ErrDuplicateKey
			}
		}
		now := time.Now()
		order.ID = m.store.nextID(tableOrders)
		order.CreatedAt = now
		order.UpdatedAt = now
		row := *order
		row.Items = nil
		tx.put(tableOrders, order.ID, row)
		return nil
	})
}

func (m *MemDB) CreateOrderItems(ctx context.Context, items []model.OrderItem) error {
	return m.exec(func(tx *memTx) error {
		now := time.Now()
		for i := range items {
			items[i].ID = m.store.nextID(tableOrderItems)
			items[i].CreatedAt = now
			tx.put(tableOrderItems, items[i].ID, items[i])
		}
		return nil
	})
}

func (m *MemDB) withItems(tx *memTx, order model.Order) model.Order {
	order.Items = scan(tx, tableOrderItems, func(it model.OrderItem) bool { return it.OrderID == order.ID })
	return order
}

func (m *MemDB) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	var out *model.Order
	err := m.exec(func(tx *memTx) error {
		v, ok := get[model.Order](tx, tableOrders, id)
		if !ok {
			return db.ErrNotFound
		}
		v = m.withItems(tx, v)
		out = &v
		return nil
	})
	return out, err
}

func (m *MemDB) LockOrder(ctx context.Context, id int64) (*model.Order, error) {
	var out *model.Order
	err := m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.Order](ctx, tx, tableOrders, id)
		if err != nil {
			return err
		}
		out = &v
		return nil
	})
	return out, err
}

func (m *MemDB) ListOrdersByMemberID(ctx context.Context, memberID int64) ([]model.Order, error) {
	var out []model.Order
	err := m.exec(func(tx *memTx) error {
		orders := scan(tx, tableOrders, func(o model.Order) bool { return o.MemberID == memberID })
		out = make([]model.Order, 0, len(orders))
		for i := len(orders) - 1; i >= 0; i-- {
			out = append(out, m.withItems(tx, orders[i]))
		}
		return nil
	})
	return out, err
}

func (m *MemDB) GetOrderByPaymentID(ctx context.Context, paymentID string) (*model.Order, error) {
	var out *model.Order
	err := m.exec(func(tx *memTx) error {
		orders := scan(tx, tableOrders, func(o model.Order) bool {
			return o.PaymentID != nil && *o.PaymentID == paymentID
		})
		if len(orders) == 0 {
			return db.ErrNotFound
		}
		out = &orders[0]
		return nil
	})
	return out, err
}

func (m *MemDB) MarkOrderPaid(ctx context.Context, id int64, paymentID string) error {
	return m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.Order](ctx, tx, tableOrders, id)
		if err != nil {
			return err
		}
		ref := paymentID
		v.Status = model.OrderStatusPaid
		v.PaymentID = &ref
		v.UpdatedAt = time.Now()
		tx.put(tableOrders, id, v)
		return nil
	})
}

// Outbox

func (m *MemDB) InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	return m.exec(func(tx *memTx) error {
		msg.ID = m.store.nextID(tableOutbox)
		msg.CreatedAt = time.Now()
		tx.put(tableOutbox, msg.ID, *msg)
		return nil
	})
}

func (m *MemDB) FetchPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	var out []model.OutboxMessage
	err := m.exec(func(tx *memTx) error {
		out = scan(tx, tableOutbox, func(o model.OutboxMessage) bool { return o.SentAt == nil })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (m *MemDB) MarkOutboxSent(ctx context.Context, id int64) error {
	return m.exec(func(tx *memTx) error {
		v, err := lockAndGet[model.OutboxMessage](ctx, tx, tableOutbox, id)
		if err != nil {
			return err
		}
		now := time.Now()
		v.SentAt = &now
		tx.put(tableOutbox, id, v)
		return nil
	})
}

var _ db.UnifiedDB = (*MemDB)(nil)
