package memdb

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
)

type tableName string

const (
	tableMembers    tableName = "members"
	tableAddresses  tableName = "member_addresses"
	tableProducts   tableName = "products"
	tableOptions    tableName = "product_options"
	tableCartLines  tableName = "cart_lines"
	tableOrders     tableName = "orders"
	tableOrderItems tableName = "order_items"
	tableOutbox     tableName = "outbox_messages"
)

// store 已提交的資料, 列以值的方式保存
type store struct {
	mu          sync.Mutex
	rows        map[tableName]map[int64]any
	seq         map[tableName]int64
	locks       *lockManager
	lockTimeout time.Duration
	txSeq       atomic.Uint64
}

func newStore(lockTimeout time.Duration) *store {
	return &store{
		rows:        make(map[tableName]map[int64]any),
		seq:         make(map[tableName]int64),
		locks:       newLockManager(),
		lockTimeout: lockTimeout,
	}
}

func (s *store) nextID(t tableName) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[t]++
	return s.seq[t]
}

func (s *store) begin() *memTx {
	return &memTx{
		id:     s.txSeq.Add(1),
		store:  s,
		writes: make(map[rowKey]pending),
		held:   make(map[rowKey]struct{}),
	}
}

type pending struct {
	val     any
	deleted bool
}

// memTx 交易內的寫入先放在 writes, commit 時才對其他交易可見
type memTx struct {
	id        uint64
	store     *store
	writes    map[rowKey]pending
	held      map[rowKey]struct{}
	heldOrder []rowKey
}

func (tx *memTx) lock(ctx context.Context, t tableName, id int64) error {
	key := rowKey{table: t, id: id}
	if _, ok := tx.held[key]; ok {
		return nil
	}
	fresh, err := tx.store.locks.acquire(ctx, key, tx.id, tx.store.lockTimeout)
	if err != nil {
		return err
	}
	if fresh {
		tx.held[key] = struct{}{}
		tx.heldOrder = append(tx.heldOrder, key)
	}
	return nil
}

func (tx *memTx) put(t tableName, id int64, v any) {
	tx.writes[rowKey{table: t, id: id}] = pending{val: v}
}

func (tx *memTx) remove(t tableName, id int64) {
	tx.writes[rowKey{table: t, id: id}] = pending{deleted: true}
}

func (tx *memTx) releaseLocks() {
	for i := len(tx.heldOrder) - 1; i >= 0; i-- {
		tx.store.locks.release(tx.heldOrder[i], tx.id)
	}
	tx.held = make(map[rowKey]struct{})
	tx.heldOrder = nil
}

func (tx *memTx) rollback() {
	tx.writes = make(map[rowKey]pending)
	tx.releaseLocks()
}

// commit 先寫入再釋放鎖, 拿到鎖的下一個交易一定讀得到這次的結果
func (tx *memTx) commit() error {
	s := tx.store
	s.mu.Lock()
	if err := s.checkUniqueKeys(tx); err != nil {
		s.mu.Unlock()
		tx.rollback()
		return err
	}
	for k, p := range tx.writes {
		if p.deleted {
			delete(s.rows[k.table], k.id)
			continue
		}
		if s.rows[k.table] == nil {
			s.rows[k.table] = make(map[int64]any)
		}
		s.rows[k.table][k.id] = p.val
	}
	s.mu.Unlock()

	tx.writes = make(map[rowKey]pending)
	tx.releaseLocks()
	return nil
}

// checkUniqueKeys 呼叫時須持有 s.mu
func (s *store) checkUniqueKeys(tx *memTx) error {
	if err := s.checkCartKeys(tx); err != nil {
		return err
	}
	return s.checkPaymentIDs(tx)
}

// checkCartKeys 對應 postgres 上的 uq_cart_lines_member_product_option
func (s *store) checkCartKeys(tx *memTx) error {
	touched := false
	for k, p := range tx.writes {
		if k.table == tableCartLines && !p.deleted {
			touched = true
			break
		}
	}
	if !touched {
		return nil
	}

	final := make(map[int64]model.CartLine, len(s.rows[tableCartLines]))
	for id, v := range s.rows[tableCartLines] {
		final[id] = v.(model.CartLine)
	}
	for k, p := range tx.writes {
		if k.table != tableCartLines {
			continue
		}
		if p.deleted {
			delete(final, k.id)
		} else {
			final[k.id] = p.val.(model.CartLine)
		}
	}

	seen := make(map[model.CartKey]int64, len(final))
	for id, line := range final {
		key := line.Key()
		if other, ok := seen[key]; ok && other != id {
			return db.ErrDuplicateKey
		}
		seen[key] = id
	}
	return nil
}

// checkPaymentIDs 對應 orders.payment_id 的唯一索引, NULL 不參與比較
func (s *store) checkPaymentIDs(tx *memTx) error {
	touched := false
	for k, p := range tx.writes {
		if k.table == tableOrders && !p.deleted && p.val.(model.Order).PaymentID != nil {
			touched = true
			break
		}
	}
	if !touched {
		return nil
	}

	final := make(map[int64]model.Order, len(s.rows[tableOrders]))
	for id, v := range s.rows[tableOrders] {
		final[id] = v.(model.Order)
	}
	for k, p := range tx.writes {
		if k.table != tableOrders {
			continue
		}
		if p.deleted {
			delete(final, k.id)
		} else {
			final[k.id] = p.val.(model.Order)
		}
	}

	seen := make(map[string]int64, len(final))
	for id, o := range final {
		if o.PaymentID == nil {
			continue
		}
		if other, ok := seen[*o.PaymentID]; ok && other != id {
			return db.ErrDuplicateKey
		}
		seen[*o.PaymentID] = id
	}
	return nil
}

// get 讀取交易內可見的單筆資料
func get[T any](tx *memTx, t tableName, id int64) (T, bool) {
	var zero T
	if p, ok := tx.writes[rowKey{table: t, id: id}]; ok {
		if p.deleted {
			return zero, false
		}
		return p.val.(T), true
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	v, ok := tx.store.rows[t][id]
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// scan 依 id 遞增回傳符合條件的資料
func scan[T any](tx *memTx, t tableName, match func(T) bool) []T {
	visible := make(map[int64]T)
	tx.store.mu.Lock()
	for id, v := range tx.store.rows[t] {
		visible[id] = v.(T)
	}
	tx.store.mu.Unlock()

	for k, p := range tx.writes {
		if k.table != t {
			continue
		}
		if p.deleted {
			delete(visible, k.id)
			continue
		}
		visible[k.id] = p.val.(T)
	}

	ids := make([]int64, 0, len(visible))
	for id, v := range visible {
		if match == nil || match(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, visible[id])
	}
	return out
}

// lockAndGet 先上鎖再讀, 讀到的是最新已提交的版本
func lockAndGet[T any](ctx context.Context, tx *memTx, t tableName, id int64) (T, error) {
	var zero T
	if err := tx.lock(ctx, t, id); err != nil {
		return zero, err
	}
	v, ok := get[T](tx, t, id)
	if !ok {
		return zero, db.ErrNotFound
	}
	return v, nil
}

// lockMany 依 id 遞增上鎖, 不存在的 id 直接略過
func lockMany[T any](ctx context.Context, tx *memTx, t tableName, ids []int64) ([]T, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]T, 0, len(sorted))
	var last int64
	for i, id := range sorted {
		if i > 0 && id == last {
			continue
		}
		last = id
		if err := tx.lock(ctx, t, id); err != nil {
			return nil, err
		}
		if v, ok := get[T](tx, t, id); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func getMany[T any](tx *memTx, t tableName, ids []int64) []T {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	sorted := make([]int64, 0, len(want))
	for id := range want {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]T, 0, len(sorted))
	for _, id := range sorted {
		if v, ok := get[T](tx, t, id); ok {
			out = append(out, v)
		}
	}
	return out
}
