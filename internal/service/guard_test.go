package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/memdb"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestGuardTranslatesLockTimeout(t *testing.T) {
	ctx := context.Background()
	store := memdb.New(50 * time.Millisecond)
	m := metrics.NewServerMetrics(prometheus.NewRegistry())
	guard := NewConcurrencyGuard(store, m, testLogger())

	fx := &storeSuite{}
	fx.SetT(t)
	fx.ctx, fx.store = ctx, store
	member := fx.createMember(0)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.Transaction(ctx, func(tx db.UnifiedDB) error {
			if _, err := tx.LockMember(ctx, member.ID); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	err := guard.Run(ctx, "test.lock", func(tx db.UnifiedDB) error {
		_, err := tx.LockMember(ctx, member.ID)
		return err
	})
	close(release)
	require.NoError(t, <-done)

	require.True(t, apperror.Is(err, apperror.ConcurrencyConflictCode))
	require.True(t, apperror.IsRetryable(err))
	require.Equal(t, float64(1), testutil.ToFloat64(m.LockConflicts.WithLabelValues("test.lock")))
}

func TestGuardTranslatesErrors(t *testing.T) {
	ctx := context.Background()
	guard := NewConcurrencyGuard(memdb.New(time.Second), nil, testLogger())

	testCases := []struct {
		name string
		err  error
		code apperror.Code
	}{
		{name: "app error passes through", err: apperror.EmptyCart(1), code: apperror.EmptyCartCode},
		{name: "duplicate key", err: db.ErrDuplicateKey, code: apperror.ConcurrencyConflictCode},
		{name: "deadline", err: context.DeadlineExceeded, code: apperror.ConcurrencyConflictCode},
		{name: "not found", err: db.ErrNotFound, code: apperror.NotFoundCode},
		{name: "unknown", err: errors.New("boom"), code: apperror.InternalCode},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := guard.Run(ctx, "test", func(tx db.UnifiedDB) error { return tc.err })
			require.True(t, apperror.Is(err, tc.code))
		})
	}

	require.NoError(t, guard.Run(ctx, "test", func(tx db.UnifiedDB) error { return nil }))
}

func TestSortedIDs(t *testing.T) {
	require.Equal(t, []int64{1, 3, 7}, sortedIDs([]int64{7, 1, 3, 7, 1}))
	require.Empty(t, sortedIDs(nil))
}
