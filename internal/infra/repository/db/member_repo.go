package db

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"gorm.io/gorm/clause"
)

type MemberRepo struct {
	db *DbDao
}

func NewMemberRepo(db *DbDao) *MemberRepo {
	return &MemberRepo{db: db}
}

func (r *MemberRepo) CreateMember(ctx context.Context, member *model.Member) error {
	return classifyError(r.db.WithContext(ctx).Create(member).Error)
}

func (r *MemberRepo) GetMemberByID(ctx context.Context, id int64) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, classifyError(err)
	}
	return &member, nil
}

// LockMember 鎖定會員列, 同一會員的購物車新增/換選項與結帳因此序列化
func (r *MemberRepo) LockMember(ctx context.Context, id int64) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&member, id).Error
	if err != nil {
		return nil, classifyError(err)
	}
	return &member, nil
}

func (r *MemberRepo) UpdateMemberPoint(ctx context.Context, id int64, point int64) error {
	res := r.db.WithContext(ctx).Model(&model.Member{}).
		Where("id = ?", id).
		Update("point", point)
	if res.Error != nil {
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
