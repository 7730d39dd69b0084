package db

import (
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm"
)

type DbDao struct {
	*gorm.DB
}

func NewDbDao(conn *gorm.DB) *DbDao {
	return &DbDao{
		DB: conn,
	}
}

// 購物車唯一鍵, option_id 為 NULL 時以 0 參與比較
const cartLineUniqueIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uq_cart_lines_member_product_option
ON cart_lines (member_id, product_id, COALESCE(option_id, 0))`

// 初始化db schema
// 冪等性
func (d *DbDao) InitMigrate() error {
	err := d.AutoMigrate(
		&model.Member{},
		&model.MemberAddress{},
		&model.Product{},
		&model.ProductOption{},
		&model.CartLine{},
		&model.Order{},
		&model.OrderItem{},
		&model.OutboxMessage{},
	)
	if err != nil {
		return err
	}
	return d.Exec(cartLineUniqueIndex).Error
}
