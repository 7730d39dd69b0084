package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound 資料不存在
	ErrNotFound = errors.New("record not found")
	// ErrLockTimeout 等待列鎖逾時或發生死結, 呼叫端可重試
	ErrLockTimeout = errors.New("lock wait timeout")
	// ErrDuplicateKey 違反唯一限制
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrConstraint 違反 check 限制, 例如庫存為負
	ErrConstraint = errors.New("check constraint violated")
)

// postgres error code
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
)

// classifyError 將 gorm / pg 錯誤轉成本套件的 sentinel error
// 其他錯誤原樣回傳, 包含 service 層在交易內回傳的錯誤
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", ErrConstraint, pgErr.ConstraintName)
		}
	}
	return err
}
