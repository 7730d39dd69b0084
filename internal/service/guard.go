package service

import (
	"context"
	"errors"
	"sort"

	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/rs/zerolog"
)

/*
ConcurrencyGuard 所有會鎖列的流程共用的交易入口

全域上鎖順序:
orders -> members -> cart_lines -> product_options -> products
同一張表內依 id 由小到大
每個流程只能依此順序取鎖, 驗證一律在取得鎖之後
*/
type ConcurrencyGuard struct {
	store   db.UnifiedDB
	metrics *metrics.ServerMetrics
	logger  zerolog.Logger
}

func NewConcurrencyGuard(store db.UnifiedDB, m *metrics.ServerMetrics, logger zerolog.Logger) *ConcurrencyGuard {
	if store == nil {
		panic("store cannot be nil")
	}
	return &ConcurrencyGuard{
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Run 在單一交易中執行 fn, 回傳的錯誤一律是 *apperror.AppError
func (g *ConcurrencyGuard) Run(ctx context.Context, operation string, fn func(tx db.UnifiedDB) error) error {
	err := g.store.Transaction(ctx, fn)
	if err == nil {
		return nil
	}
	appErr := g.translate(err)
	switch appErr.Code {
	case apperror.ConcurrencyConflictCode:
		g.metrics.ObserveLockConflict(operation)
		g.logger.Warn().Err(err).Str("operation", operation).Msg("transaction aborted by lock conflict")
	case apperror.InternalCode:
		g.logger.Error().Err(err).Str("operation", operation).Msg("transaction failed")
	}
	return appErr
}

func (g *ConcurrencyGuard) translate(err error) *apperror.AppError {
	if appErr, ok := apperror.From(err); ok {
		return appErr
	}
	switch {
	case errors.Is(err, db.ErrLockTimeout), errors.Is(err, db.ErrDuplicateKey):
		return apperror.ConcurrencyConflict(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.ConcurrencyConflict(err)
	case errors.Is(err, db.ErrNotFound):
		return apperror.Wrap(apperror.NotFoundCode, err, "")
	default:
		return apperror.Internal(err)
	}
}

// sortedIDs 去重後遞增排序
func sortedIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// notFoundAs 將 repository 的 ErrNotFound 換成指定的 AppError, 其他錯誤原樣回傳
func notFoundAs(err error, appErr *apperror.AppError) error {
	if errors.Is(err, db.ErrNotFound) {
		return appErr
	}
	return err
}
