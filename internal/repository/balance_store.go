package repository

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"ecoprado/internal/model"
)

var (
	ErrInsufficientFunds = errors.New("余额不足")
	ErrInvalidAmount     = errors.New("金额必须大于0")
	ErrBalanceOverflow   = errors.New("余额超出上限")
)

// BalanceStore 本地余额存储
//
// 外部账本不可达或不一致时，这里的余额就是准绳。
// 所有修改都是原子的，余额任何时刻都不会小于 0。
type BalanceStore interface {
	// Open 不存在则以 0 开户，已存在时不做任何修改
	Open(ctx context.Context, accountRef string) error
	// Get 未知账户返回 0
	Get(ctx context.Context, accountRef string) (int64, error)
	// Credit 入账后余额超过 int64 上限时返回 ErrBalanceOverflow，且不修改余额
	Credit(ctx context.Context, accountRef string, amount int64, remark string) (int64, error)
	// Debit 余额不足时返回 ErrInsufficientFunds，且不修改余额
	Debit(ctx context.Context, accountRef string, amount int64, remark string) (int64, error)
	// Reconcile 只有外部观测值 > 0 时才覆盖本地余额，applied 表示是否覆盖
	Reconcile(ctx context.Context, accountRef string, observed int64) (balance int64, applied bool, err error)
	Entries(ctx context.Context, accountRef string) ([]*model.BalanceEntry, error)
}

type memoryBalanceStore struct {
	mu       sync.Mutex
	balances map[string]int64
	entries  map[string][]*model.BalanceEntry
}

func NewMemoryBalanceStore() BalanceStore {
	return &memoryBalanceStore{
		balances: make(map[string]int64),
		entries:  make(map[string][]*model.BalanceEntry),
	}
}

func (s *memoryBalanceStore) Open(ctx context.Context, accountRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[accountRef]; !ok {
		s.balances[accountRef] = 0
	}
	return nil
}

func (s *memoryBalanceStore) Get(ctx context.Context, accountRef string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[accountRef], nil
}

func (s *memoryBalanceStore) Credit(ctx context.Context, accountRef string, amount int64, remark string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.balances[accountRef]
	if amount > math.MaxInt64-before {
		return before, ErrBalanceOverflow
	}
	after := before + amount
	s.balances[accountRef] = after
	s.appendEntry(accountRef, amount, model.EntryTypeCredit, before, after, remark)
	return after, nil
}

func (s *memoryBalanceStore) Debit(ctx context.Context, accountRef string, amount int64, remark string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.balances[accountRef]
	if before < amount {
		return before, ErrInsufficientFunds
	}
	after := before - amount
	s.balances[accountRef] = after
	s.appendEntry(accountRef, -amount, model.EntryTypeDebit, before, after, remark)
	return after, nil
}

// Reconcile 按外部账本校准余额
//
// 【关键点】非对称信任：外部返回 0 或不可达时绝不清空本地积累的余额；
// 只有外部返回正数（可信的观测）时，才认为外部更权威并覆盖本地。
func (s *memoryBalanceStore) Reconcile(ctx context.Context, accountRef string, observed int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.balances[accountRef]
	if observed <= 0 {
		return before, false, nil
	}
	if observed != before {
		s.balances[accountRef] = observed
		s.appendEntry(accountRef, observed-before, model.EntryTypeReconcile, before, observed, "外部账本校准")
	}
	return observed, true, nil
}

func (s *memoryBalanceStore) Entries(ctx context.Context, accountRef string) ([]*model.BalanceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[accountRef]
	result := make([]*model.BalanceEntry, 0, len(list))
	for _, e := range list {
		copied := *e
		result = append(result, &copied)
	}
	return result, nil
}

func (s *memoryBalanceStore) appendEntry(accountRef string, amount int64, entryType string, before, after int64, remark string) {
	s.entries[accountRef] = append(s.entries[accountRef], &model.BalanceEntry{
		AccountRef:    accountRef,
		Amount:        amount,
		Type:          entryType,
		BalanceBefore: before,
		BalanceAfter:  after,
		Remark:        remark,
		CreatedAt:     time.Now(),
	})
}
