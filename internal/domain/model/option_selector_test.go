package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseOptionSelector(t *testing.T) {
	sel, err := ParseOptionSelector(nil)
	require.NoError(t, err)
	require.True(t, sel.IsNone())
	require.Nil(t, sel.Column())

	id := int64(7)
	sel, err = ParseOptionSelector(&id)
	require.NoError(t, err)
	require.False(t, sel.IsNone())
	got, ok := sel.OptionID()
	require.True(t, ok)
	require.Equal(t, int64(7), got)
	require.Equal(t, int64(7), *sel.Column())
	require.True(t, sel.Equal(OptionRef(7)))
	require.False(t, sel.Equal(NoOption()))

	bad := int64(0)
	_, err = ParseOptionSelector(&bad)
	require.ErrorIs(t, err, ErrInvalidSelector)
}

func TestCartLineKey(t *testing.T) {
	optID := int64(3)
	a := CartLine{MemberID: 1, ProductID: 2, OptionID: &optID}
	b := CartLine{MemberID: 1, ProductID: 2}
	require.NotEqual(t, a.Key(), b.Key())
	require.True(t, a.Selector().Equal(OptionRef(3)))
	require.True(t, b.Selector().IsNone())
}

func TestProductValidate(t *testing.T) {
	p := Product{SellPrice: decimal.NewFromInt(120), ConsumerPrice: decimal.NewFromInt(100)}
	require.ErrorIs(t, p.Validate(), ErrInvalidPrice)

	p.ConsumerPrice = decimal.NewFromInt(150)
	require.NoError(t, p.Validate())

	p.Stock = -1
	require.ErrorIs(t, p.Validate(), ErrNegativeStock)

	require.Equal(t, ProductStatusSoldOut, StatusForStock(0))
	require.Equal(t, ProductStatusOnSale, StatusForStock(3))
}
