package db

import (
	"context"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm/clause"
)

type CartRepo struct {
	db *DbDao
}

func NewCartRepo(db *DbDao) *CartRepo {
	return &CartRepo{db: db}
}

func (r *CartRepo) CreateCartLine(ctx context.Context, line *model.CartLine) error {
	return classifyError(r.db.WithContext(ctx).Create(line).Error)
}

func (r *CartRepo) GetCartLineByID(ctx context.Context, id int64) (*model.CartLine, error) {
	var line model.CartLine
	if err := r.db.WithContext(ctx).First(&line, id).Error; err != nil {
		return nil, classifyError(err)
	}
	return &line, nil
}

func (r *CartRepo) LockCartLine(ctx context.Context, id int64) (*model.CartLine, error) {
	var line model.CartLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&line, id).Error
	if err != nil {
		return nil, classifyError(err)
	}
	return &line, nil
}

func (r *CartRepo) FindCartLine(ctx context.Context, memberID, productID int64, selector model.OptionSelector) (*model.CartLine, error) {
	var line model.CartLine
	q := r.db.WithContext(ctx).Where("member_id = ? AND product_id = ?", memberID, productID)
	if optionID, ok := selector.OptionID(); ok {
		q = q.Where("option_id = ?", optionID)
	} else {
		q = q.Where("option_id IS NULL")
	}
	if err := q.First(&line).Error; err != nil {
		return nil, classifyError(err)
	}
	return &line, nil
}

func (r *CartRepo) ListCartLines(ctx context.Context, memberID int64) ([]model.CartLine, error) {
	var lines []model.CartLine
	err := r.db.WithContext(ctx).Where("member_id = ?", memberID).Order("id").Find(&lines).Error
	return lines, classifyError(err)
}

// LockCartLines 依 id 遞增順序鎖定會員全部購物車明細
func (r *CartRepo) LockCartLines(ctx context.Context, memberID int64) ([]model.CartLine, error) {
	var lines []model.CartLine
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", memberID).
		Order("id").
		Find(&lines).Error
	return lines, classifyError(err)
}

func (r *CartRepo) UpdateCartLine(ctx context.Context, line *model.CartLine) error {
	line.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&model.CartLine{}).
		Where("id = ?", line.ID).
		Updates(map[string]any{
			"quantity":   line.Quantity,
			"option_id":  line.OptionID,
			"updated_at": line.UpdatedAt,
		})
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCartLine 不存在時不回傳錯誤
func (r *CartRepo) DeleteCartLine(ctx context.Context, memberID, id int64) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND member_id = ?", id, memberID).
		Delete(&model.CartLine{}).Error
	return classifyError(err)
}

func (r *CartRepo) ClearCartLines(ctx context.Context, memberID int64) error {
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Delete(&model.CartLine{}).Error
	return classifyError(err)
}
