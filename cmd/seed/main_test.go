package main

import (
	"context"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/memdb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSeedKeepsOptionAggregate(t *testing.T) {
	ctx := context.Background()
	store := memdb.New(time.Second)
	require.NoError(t, seed(ctx, store, zerolog.Nop()))

	p, err := store.GetProductByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, p.HasOptions)
	sum, err := store.SumOptionStock(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 10, sum)
	require.Equal(t, sum, p.Stock)

	m, err := store.GetMemberByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(100000), m.Point)
}
