package memdb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type MemDBTestSuite struct {
	suite.Suite
	ctx context.Context
	db  *MemDB
}

func (s *MemDBTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = New(200 * time.Millisecond)
}

func TestMemDBSuite(t *testing.T) {
	suite.Run(t, new(MemDBTestSuite))
}

func (s *MemDBTestSuite) createProduct(stock int) *model.Product {
	p := &model.Product{
		Name:          "tee",
		SellPrice:     decimal.NewFromInt(100),
		ConsumerPrice: decimal.NewFromInt(120),
		Stock:         stock,
		IsShow:        true,
	}
	require.NoError(s.T(), s.db.CreateProduct(s.ctx, p))
	return p
}

func (s *MemDBTestSuite) TestRollbackDiscardsWrites() {
	p := s.createProduct(5)
	boom := errors.New("boom")

	err := s.db.Transaction(s.ctx, func(tx db.UnifiedDB) error {
		require.NoError(s.T(), tx.UpdateProductStock(s.ctx, p.ID, 1, model.ProductStatusOnSale))
		got, err := tx.GetProductByID(s.ctx, p.ID)
		require.NoError(s.T(), err)
		require.Equal(s.T(), 1, got.Stock)
		return boom
	})
	require.ErrorIs(s.T(), err, boom)

	got, err := s.db.GetProductByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 5, got.Stock)
}

func (s *MemDBTestSuite) TestUncommittedWritesInvisible() {
	p := s.createProduct(5)
	locked := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = s.db.Transaction(s.ctx, func(tx db.UnifiedDB) error {
			if err := tx.UpdateProductStock(s.ctx, p.ID, 2, model.ProductStatusOnSale); err != nil {
				return err
			}
			close(locked)
			<-done
			return nil
		})
	}()

	<-locked
	got, err := s.db.GetProductByID(s.ctx, p.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 5, got.Stock)
	close(done)
}

func (s *MemDBTestSuite) TestLockWaitsForCommit() {
	p := s.createProduct(5)
	locked := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.db.Transaction(s.ctx, func(tx db.UnifiedDB) error {
			if _, err := tx.LockProducts(s.ctx, []int64{p.ID}); err != nil {
				return err
			}
			close(locked)
			time.Sleep(50 * time.Millisecond)
			return tx.UpdateProductStock(s.ctx, p.ID, 3, model.ProductStatusOnSale)
		})
	}()

	<-locked
	err := s.db.Transaction(s.ctx, func(tx db.UnifiedDB) error {
		rows, err := tx.LockProducts(s.ctx, []int64{p.ID})
		require.NoError(s.T(), err)
		require.Len(s.T(), rows, 1)
		// 拿到鎖時前一個交易已提交
		require.Equal(s.T(), 3, rows[0].Stock)
		return nil
	})
	require.NoError(s.T(), err)
	wg.Wait()
}

func (s *MemDBTestSuite) TestLockTimeout() {
	p := s.createProduct(5)
	locked := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = s.db.Transaction(s.ctx, func(tx db.UnifiedDB) error {
			if _, err := tx.LockProducts(s.ctx, []int64{p.ID}); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked
	err := s.db.Transaction(s.ctx, func(tx db.UnifiedDB) error {
		_, err := tx.LockProducts(s.ctx, []int64{p.ID})
		return err
	})
	require.ErrorIs(s.T(), err, db.ErrLockTimeout)
	close(release)
}

func (s *MemDBTestSuite) TestLockIsReentrant() {
	p := s.createProduct(5)
	err := s.db.Transaction(s.ctx, func(tx db.UnifiedDB) error {
		if _, err := tx.LockProducts(s.ctx, []int64{p.ID}); err != nil {
			return err
		}
		if _, err := tx.LockProducts(s.ctx, []int64{p.ID, p.ID}); err != nil {
			return err
		}
		return tx.UpdateProductStock(s.ctx, p.ID, 4, model.ProductStatusOnSale)
	})
	require.NoError(s.T(), err)
}

func (s *MemDBTestSuite) TestCartKeyUnique() {
	p := s.createProduct(5)
	member := &model.Member{Email: "a@b.c", Name: "a"}
	require.NoError(s.T(), s.db.CreateMember(s.ctx, member))

	require.NoError(s.T(), s.db.CreateCartLine(s.ctx, &model.CartLine{MemberID: member.ID, ProductID: p.ID, Quantity: 1}))
	err := s.db.CreateCartLine(s.ctx, &model.CartLine{MemberID: member.ID, ProductID: p.ID, Quantity: 2})
	require.ErrorIs(s.T(), err, db.ErrDuplicateKey)

	optID := int64(99)
	require.NoError(s.T(), s.db.CreateCartLine(s.ctx, &model.CartLine{MemberID: member.ID, ProductID: p.ID, OptionID: &optID, Quantity: 1}))

	line, err := s.db.FindCartLine(s.ctx, member.ID, p.ID, model.OptionRef(optID))
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, line.Quantity)

	_, err = s.db.FindCartLine(s.ctx, member.ID, p.ID, model.OptionRef(7))
	require.ErrorIs(s.T(), err, db.ErrNotFound)
}

func (s *MemDBTestSuite) TestDeleteIsIdempotent() {
	p := s.createProduct(5)
	line := &model.CartLine{MemberID: 1, ProductID: p.ID, Quantity: 1}
	require.NoError(s.T(), s.db.CreateCartLine(s.ctx, line))

	require.NoError(s.T(), s.db.DeleteCartLine(s.ctx, 1, line.ID))
	require.NoError(s.T(), s.db.DeleteCartLine(s.ctx, 1, line.ID))
	require.NoError(s.T(), s.db.ClearCartLines(s.ctx, 1))

	lines, err := s.db.ListCartLines(s.ctx, 1)
	require.NoError(s.T(), err)
	require.Empty(s.T(), lines)
}

func (s *MemDBTestSuite) TestSumOptionStock() {
	p := &model.Product{
		Name:          "hoodie",
		SellPrice:     decimal.NewFromInt(100),
		ConsumerPrice: decimal.NewFromInt(100),
		HasOptions:    true,
		IsShow:        true,
		Stock:         7,
		Options: []model.ProductOption{
			{OptionTitle: "Color", OptionValue: "Red", Stock: 5, IsShow: true},
			{OptionTitle: "Color", OptionValue: "Blue", Stock: 2, IsShow: true},
		},
	}
	require.NoError(s.T(), s.db.CreateProduct(s.ctx, p))
	require.Equal(s.T(), p.ID, p.Options[0].ProductID)

	sum, err := s.db.SumOptionStock(s.ctx, p.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), 7, sum)

	require.ErrorIs(s.T(), s.db.UpdateOptionStock(s.ctx, p.Options[0].ID, -1), db.ErrConstraint)
}

func (s *MemDBTestSuite) TestOrdersWithItems() {
	order := &model.Order{MemberID: 1, OrderNumber: model.NewOrderNumber(), TotalPrice: decimal.NewFromInt(300), Status: model.OrderStatusReady}
	require.NoError(s.T(), s.db.CreateOrder(s.ctx, order))
	require.NoError(s.T(), s.db.CreateOrderItems(s.ctx, []model.OrderItem{
		{OrderID: order.ID, ProductID: 1, ProductName: "tee", UnitPrice: decimal.NewFromInt(100), Quantity: 3, Subtotal: decimal.NewFromInt(300)},
	}))
	require.NoError(s.T(), s.db.MarkOrderPaid(s.ctx, order.ID, "pay-1"))

	got, err := s.db.GetOrderByID(s.ctx, order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), model.OrderStatusPaid, got.Status)
	require.Equal(s.T(), "pay-1", *got.PaymentID)
	require.Len(s.T(), got.Items, 1)

	orders, err := s.db.ListOrdersByMemberID(s.ctx, 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), orders, 1)
}

func (s *MemDBTestSuite) TestPaymentIDUnique() {
	first := &model.Order{MemberID: 1, OrderNumber: model.NewOrderNumber(), TotalPrice: decimal.NewFromInt(100), Status: model.OrderStatusReady}
	second := &model.Order{MemberID: 1, OrderNumber: model.NewOrderNumber(), TotalPrice: decimal.NewFromInt(100), Status: model.OrderStatusReady}
	require.NoError(s.T(), s.db.CreateOrder(s.ctx, first))
	require.NoError(s.T(), s.db.CreateOrder(s.ctx, second))

	_, err := s.db.GetOrderByPaymentID(s.ctx, "pay-1")
	require.ErrorIs(s.T(), err, db.ErrNotFound)

	require.NoError(s.T(), s.db.MarkOrderPaid(s.ctx, first.ID, "pay-1"))
	err = s.db.MarkOrderPaid(s.ctx, second.ID, "pay-1")
	require.ErrorIs(s.T(), err, db.ErrDuplicateKey)

	used, err := s.db.GetOrderByPaymentID(s.ctx, "pay-1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), first.ID, used.ID)

	got, err := s.db.GetOrderByID(s.ctx, second.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), model.OrderStatusReady, got.Status)
	require.Nil(s.T(), got.PaymentID)
}

func (s *MemDBTestSuite) TestOutboxPending() {
	for i := 0; i < 3; i++ {
		require.NoError(s.T(), s.db.InsertOutbox(s.ctx, &model.OutboxMessage{EventID: "e", Topic: "t", Key: "k", Payload: []byte("{}")}))
	}
	pending, err := s.db.FetchPendingOutbox(s.ctx, 2)
	require.NoError(s.T(), err)
	require.Len(s.T(), pending, 2)

	require.NoError(s.T(), s.db.MarkOutboxSent(s.ctx, pending[0].ID))
	pending, err = s.db.FetchPendingOutbox(s.ctx, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), pending, 2)
}
