package db

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
)

type AddressRepo struct {
	db *DbDao
}

func NewAddressRepo(db *DbDao) *AddressRepo {
	return &AddressRepo{db: db}
}

func (r *AddressRepo) CreateAddress(ctx context.Context, address *model.MemberAddress) error {
	return classifyError(r.db.WithContext(ctx).Create(address).Error)
}

func (r *AddressRepo) GetAddressByID(ctx context.Context, id int64) (*model.MemberAddress, error) {
	var address model.MemberAddress
	if err := r.db.WithContext(ctx).First(&address, id).Error; err != nil {
		return nil, classifyError(err)
	}
	return &address, nil
}
