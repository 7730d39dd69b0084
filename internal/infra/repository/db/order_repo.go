package db

import (
	"context"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepo struct {
	db *DbDao
}

func NewOrderRepo(db *DbDao) *OrderRepo {
	return &OrderRepo{db: db}
}

// CreateOrder 明細另外用 CreateOrderItems 寫入
func (r *OrderRepo) CreateOrder(ctx context.Context, order *model.Order) error {
	return classifyError(r.db.WithContext(ctx).Omit("Items").Create(order).Error)
}

func (r *OrderRepo) CreateOrderItems(ctx context.Context, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return classifyError(r.db.WithContext(ctx).Create(&items).Error)
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.id")
}

func (r *OrderRepo) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items", preloadItems).First(&order, id).Error
	if err != nil {
		return nil, classifyError(err)
	}
	return &order, nil
}

// LockOrder 不載入明細
func (r *OrderRepo) LockOrder(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, id).Error
	if err != nil {
		return nil, classifyError(err)
	}
	return &order, nil
}

func (r *OrderRepo) ListOrdersByMemberID(ctx context.Context, memberID int64) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Preload("Items", preloadItems).
		Where("member_id = ?", memberID).
		Order("id DESC").
		Find(&orders).Error
	return orders, classifyError(err)
}

func (r *OrderRepo) GetOrderByPaymentID(ctx context.Context, paymentID string) (*model.Order, error) {
	var order model.Order
	if err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&order).Error; err != nil {
		return nil, classifyError(err)
	}
	return &order, nil
}

func (r *OrderRepo) MarkOrderPaid(ctx context.Context, id int64, paymentID string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     model.OrderStatusPaid,
			"payment_id": paymentID,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
