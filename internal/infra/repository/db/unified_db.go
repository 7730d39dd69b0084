package db

import (
	"context"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
)

// UnifiedDB 統一的資料庫介面
// Lock 開頭的方法回傳時已持有列鎖 (select ... for update), 多筆時依 id 由小到大上鎖
// 鎖只在 Transaction 內有意義, 交易結束即釋放
type UnifiedDB interface {
	InitMigrate() error
	// Transaction 在同一個交易中執行 fn, fn 回傳錯誤即 rollback
	// 已在交易中時直接沿用外層交易
	Transaction(ctx context.Context, fn func(tx UnifiedDB) error) error

	IMemberRepository
	IProductRepository
	ICartRepository
	IOrderRepository
	IAddressRepository
	IOutboxRepository
}

// IMemberRepository Member 相關操作介面
type IMemberRepository interface {
	CreateMember(ctx context.Context, member *model.Member) error
	GetMemberByID(ctx context.Context, id int64) (*model.Member, error)
	LockMember(ctx context.Context, id int64) (*model.Member, error)
	UpdateMemberPoint(ctx context.Context, id int64, point int64) error
}

// IProductRepository Product / ProductOption 相關操作介面
type IProductRepository interface {
	CreateProduct(ctx context.Context, product *model.Product) error
	CreateProductOption(ctx context.Context, option *model.ProductOption) error
	GetProductByID(ctx context.Context, id int64) (*model.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
	LockProducts(ctx context.Context, ids []int64) ([]model.Product, error)
	GetOptionByID(ctx context.Context, id int64) (*model.ProductOption, error)
	GetOptionsByIDs(ctx context.Context, ids []int64) ([]model.ProductOption, error)
	LockOptions(ctx context.Context, ids []int64) ([]model.ProductOption, error)
	ListOptionsByProductID(ctx context.Context, productID int64) ([]model.ProductOption, error)
	SumOptionStock(ctx context.Context, productID int64) (int, error)
	UpdateOptionStock(ctx context.Context, optionID int64, stock int) error
	UpdateProductStock(ctx context.Context, productID int64, stock int, status model.ProductStatus) error
}

// ICartRepository CartLine 相關操作介面
type ICartRepository interface {
	CreateCartLine(ctx context.Context, line *model.CartLine) error
	GetCartLineByID(ctx context.Context, id int64) (*model.CartLine, error)
	LockCartLine(ctx context.Context, id int64) (*model.CartLine, error)
	FindCartLine(ctx context.Context, memberID, productID int64, selector model.OptionSelector) (*model.CartLine, error)
	ListCartLines(ctx context.Context, memberID int64) ([]model.CartLine, error)
	LockCartLines(ctx context.Context, memberID int64) ([]model.CartLine, error)
	UpdateCartLine(ctx context.Context, line *model.CartLine) error
	DeleteCartLine(ctx context.Context, memberID, id int64) error
	ClearCartLines(ctx context.Context, memberID int64) error
}

// IOrderRepository Order 相關操作介面
type IOrderRepository interface {
	CreateOrder(ctx context.Context, order *model.Order) error
	CreateOrderItems(ctx context.Context, items []model.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	LockOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrdersByMemberID(ctx context.Context, memberID int64) ([]model.Order, error)
	// GetOrderByPaymentID 查詢已使用此付款編號的訂單, 沒有時回傳 ErrNotFound
	GetOrderByPaymentID(ctx context.Context, paymentID string) (*model.Order, error)
	// MarkOrderPaid 狀態改為 PAID 並記錄付款編號, 付款編號唯一
	MarkOrderPaid(ctx context.Context, id int64, paymentID string) error
}

// IAddressRepository 只讀, 地址簿維護不在這個服務
type IAddressRepository interface {
	CreateAddress(ctx context.Context, address *model.MemberAddress) error
	GetAddressByID(ctx context.Context, id int64) (*model.MemberAddress, error)
}

// IOutboxRepository outbox 相關操作介面
type IOutboxRepository interface {
	InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error
	FetchPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}

// UnifiedDBImpl 統一資料庫實現
type UnifiedDBImpl struct {
	db          *gorm.DB
	dbDao       *DbDao
	lockTimeout time.Duration
	inTx        bool
	*MemberRepo
	*ProductDBRepo
	*CartRepo
	*OrderRepo
	*AddressRepo
	*OutboxRepo
}

// NewUnifiedDB 創建新的統一資料庫實例
// lockTimeout 為每個交易等待列鎖的上限, 0 代表使用資料庫預設
func NewUnifiedDB(db *gorm.DB, lockTimeout time.Duration) *UnifiedDBImpl {
	return newUnifiedDB(db, lockTimeout, false)
}

func newUnifiedDB(db *gorm.DB, lockTimeout time.Duration, inTx bool) *UnifiedDBImpl {
	dbDao := NewDbDao(db)
	return &UnifiedDBImpl{
		db:            db,
		dbDao:         dbDao,
		lockTimeout:   lockTimeout,
		inTx:          inTx,
		MemberRepo:    NewMemberRepo(dbDao),
		ProductDBRepo: NewProductDBRepo(dbDao),
		CartRepo:      NewCartRepo(dbDao),
		OrderRepo:     NewOrderRepo(dbDao),
		AddressRepo:   NewAddressRepo(dbDao),
		OutboxRepo:    NewOutboxRepo(dbDao),
	}
}

func (u *UnifiedDBImpl) InitMigrate() error {
	return u.dbDao.InitMigrate()
}

// GetDB 獲取資料庫連接
func (u *UnifiedDBImpl) GetDB() *gorm.DB {
	return u.db
}

func (u *UnifiedDBImpl) Transaction(ctx context.Context, fn func(tx UnifiedDB) error) error {
	if u.inTx {
		return fn(u)
	}
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if u.lockTimeout > 0 {
			// SET LOCAL 只作用在目前交易
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(newUnifiedDB(tx, u.lockTimeout, true))
	})
	return classifyError(err)
}

var (
	_ UnifiedDB          = (*UnifiedDBImpl)(nil)
	_ IMemberRepository  = (*MemberRepo)(nil)
	_ IProductRepository = (*ProductDBRepo)(nil)
	_ ICartRepository    = (*CartRepo)(nil)
	_ IOrderRepository   = (*OrderRepo)(nil)
	_ IAddressRepository = (*AddressRepo)(nil)
	_ IOutboxRepository  = (*OutboxRepo)(nil)
)
