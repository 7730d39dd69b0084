package service

import (
	"context"
	"fmt"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/memdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// storeSuite 共用的測試資料建立
type storeSuite struct {
	suite.Suite
	ctx   context.Context
	store *memdb.MemDB
	guard *ConcurrencyGuard
	seq   int
}

func (s *storeSuite) setupStore(lockTimeout time.Duration) {
	s.ctx = context.Background()
	s.store = memdb.New(lockTimeout)
	s.guard = NewConcurrencyGuard(s.store, nil, testLogger())
}

func (s *storeSuite) createMember(point int64) *model.Member {
	s.seq++
	m := &model.Member{
		Email: fmt.Sprintf("member%d@example.com", s.seq),
		Name:  fmt.Sprintf("member%d", s.seq),
		Point: point,
	}
	require.NoError(s.T(), s.store.CreateMember(s.ctx, m))
	return m
}

func (s *storeSuite) createAddress(memberID int64) *model.MemberAddress {
	a := &model.MemberAddress{
		MemberID:  memberID,
		Name:      "Receiver",
		Phone:     "010-0000-0000",
		Address:   "1 Test Road",
		Detail:    "Apt 2",
		Zipcode:   "12345",
		IsDefault: true,
	}
	require.NoError(s.T(), s.store.CreateAddress(s.ctx, a))
	return a
}

func (s *storeSuite) createPlainProduct(price int64, stock int) *model.Product {
	p := &model.Product{
		Name:          fmt.Sprintf("plain-%d", price),
		MainImg:       "/img/plain.png",
		SellPrice:     decimal.NewFromInt(price),
		ConsumerPrice: decimal.NewFromInt(price),
		Stock:         stock,
		IsShow:        true,
	}
	require.NoError(s.T(), s.store.CreateProduct(s.ctx, p))
	return p
}

type optionSpec struct {
	value string
	stock int
	price *int64
}

func priceOf(v int64) *int64 { return &v }

// createOptionProduct 商品庫存等於選項加總
func (s *storeSuite) createOptionProduct(price int64, specs ...optionSpec) *model.Product {
	p := &model.Product{
		Name:          fmt.Sprintf("option-%d", price),
		MainImg:       "/img/option.png",
		SellPrice:     decimal.NewFromInt(price),
		ConsumerPrice: decimal.NewFromInt(price + 100),
		HasOptions:    true,
		IsShow:        true,
	}
	for _, sp := range specs {
		opt := model.ProductOption{OptionTitle: "Color", OptionValue: sp.value, Stock: sp.stock, IsShow: true}
		if sp.price != nil {
			d := decimal.NewFromInt(*sp.price)
			opt.SellPrice = &d
		}
		p.Options = append(p.Options, opt)
		p.Stock += sp.stock
	}
	require.NoError(s.T(), s.store.CreateProduct(s.ctx, p))
	return p
}

func (s *storeSuite) product(id int64) *model.Product {
	p, err := s.store.GetProductByID(s.ctx, id)
	require.NoError(s.T(), err)
	return p
}

func (s *storeSuite) option(id int64) *model.ProductOption {
	o, err := s.store.GetOptionByID(s.ctx, id)
	require.NoError(s.T(), err)
	return o
}

func (s *storeSuite) member(id int64) *model.Member {
	m, err := s.store.GetMemberByID(s.ctx, id)
	require.NoError(s.T(), err)
	return m
}

func (s *storeSuite) cartLines(memberID int64) []model.CartLine {
	lines, err := s.store.ListCartLines(s.ctx, memberID)
	require.NoError(s.T(), err)
	return lines
}

// requireAggregate 有選項的商品庫存必須等於選項加總
func (s *storeSuite) requireAggregate(productID int64) {
	sum, err := s.store.SumOptionStock(s.ctx, productID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), sum, s.product(productID).Stock)
}
