package db

import (
	"context"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm/clause"
)

type ProductDBRepo struct {
	db *DbDao
}

func NewProductDBRepo(db *DbDao) *ProductDBRepo {
	return &ProductDBRepo{db: db}
}

// CreateProduct 連同 Options 一起建立
func (s *ProductDBRepo) CreateProduct(ctx context.Context, product *model.Product) error {
	return classifyError(s.db.WithContext(ctx).Create(product).Error)
}

func (s *ProductDBRepo) CreateProductOption(ctx context.Context, option *model.ProductOption) error {
	return classifyError(s.db.WithContext(ctx).Create(option).Error)
}

func (s *ProductDBRepo) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, classifyError(err)
	}
	return &product, nil
}

func (s *ProductDBRepo) GetProductsByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []model.Product
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&products).Error
	return products, classifyError(err)
}

// LockProducts 依 id 遞增順序鎖定
func (s *ProductDBRepo) LockProducts(ctx context.Context, ids []int64) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []model.Product
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error
	return products, classifyError(err)
}

func (s *ProductDBRepo) GetOptionByID(ctx context.Context, id int64) (*model.ProductOption, error) {
	var option model.ProductOption
	if err := s.db.WithContext(ctx).First(&option, id).Error; err != nil {
		return nil, classifyError(err)
	}
	return &option, nil
}

func (s *ProductDBRepo) GetOptionsByIDs(ctx context.Context, ids []int64) ([]model.ProductOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var options []model.ProductOption
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&options).Error
	return options, classifyError(err)
}

// LockOptions 依 id 遞增順序鎖定
func (s *ProductDBRepo) LockOptions(ctx context.Context, ids []int64) ([]model.ProductOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var options []model.ProductOption
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&options).Error
	return options, classifyError(err)
}

func (s *ProductDBRepo) ListOptionsByProductID(ctx context.Context, productID int64) ([]model.ProductOption, error) {
	var options []model.ProductOption
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("id").Find(&options).Error
	return options, classifyError(err)
}

// SumOptionStock 重新加總, 呼叫前須已鎖定商品列
func (s *ProductDBRepo) SumOptionStock(ctx context.Context, productID int64) (int, error) {
	var sum int64
	err := s.db.WithContext(ctx).Model(&model.ProductOption{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(stock), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, classifyError(err)
	}
	return int(sum), nil
}

func (s *ProductDBRepo) UpdateOptionStock(ctx context.Context, optionID int64, stock int) error {
	res := s.db.WithContext(ctx).Model(&model.ProductOption{}).
		Where("id = ?", optionID).
		Updates(map[string]any{"stock": stock, "updated_at": time.Now()})
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProductStock 庫存與狀態同一個 statement 寫入
func (s *ProductDBRepo) UpdateProductStock(ctx context.Context, productID int64, stock int, status model.ProductStatus) error {
	res := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{"stock": stock, "status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
