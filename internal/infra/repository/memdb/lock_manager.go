package memdb

import (
	"context"
	"sync"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
)

type rowKey struct {
	table tableName
	id    int64
}

type rowLock struct {
	owner    uint64
	released chan struct{}
}

// lockManager 模擬資料庫的列鎖: 互斥, 同一交易可重入, 等待有上限
type lockManager struct {
	mu    sync.Mutex
	owner map[rowKey]*rowLock
}

func newLockManager() *lockManager {
	return &lockManager{owner: make(map[rowKey]*rowLock)}
}

// acquire 回傳 true 表示這次才取得, false 表示本來就持有
func (l *lockManager) acquire(ctx context.Context, key rowKey, txID uint64, timeout time.Duration) (bool, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		l.mu.Lock()
		lk, ok := l.owner[key]
		if !ok {
			l.owner[key] = &rowLock{owner: txID, released: make(chan struct{})}
			l.mu.Unlock()
			return true, nil
		}
		if lk.owner == txID {
			l.mu.Unlock()
			return false, nil
		}
		wait := lk.released
		l.mu.Unlock()

		select {
		case <-wait:
		case <-deadline:
			return false, db.ErrLockTimeout
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (l *lockManager) release(key rowKey, txID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lk, ok := l.owner[key]; ok && lk.owner == txID {
		delete(l.owner, key)
		close(lk.released)
	}
}
