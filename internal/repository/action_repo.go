package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"ecoprado/internal/model"
)

var (
	ErrActionNotFound = errors.New("行动记录不存在")
)

// ActionRepository 行动账本，只追加
type ActionRepository interface {
	Create(ctx context.Context, action *model.Action) error
	GetByID(ctx context.Context, id int64) (*model.Action, error)
	ListByAccount(ctx context.Context, accountRef string) ([]*model.Action, error)
	ListAll(ctx context.Context) ([]*model.Action, error)
	// AttachReceipts 只补写尚为空的回执字段，已有值不会被覆盖
	AttachReceipts(ctx context.Context, id int64, receipts model.Receipts) (*model.Action, error)
}

type memoryActionRepository struct {
	mu        sync.RWMutex
	nextID    int64
	actions   []*model.Action
	byID      map[int64]*model.Action
	byAccount map[string][]*model.Action
}

func NewMemoryActionRepository() ActionRepository {
	return &memoryActionRepository{
		byID:      make(map[int64]*model.Action),
		byAccount: make(map[string][]*model.Action),
	}
}

func (r *memoryActionRepository) Create(ctx context.Context, action *model.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	action.ID = r.nextID
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}

	stored := cloneAction(action)
	r.actions = append(r.actions, stored)
	r.byID[stored.ID] = stored
	r.byAccount[stored.AccountRef] = append(r.byAccount[stored.AccountRef], stored)
	return nil
}

func (r *memoryActionRepository) GetByID(ctx context.Context, id int64) (*model.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.byID[id]
	if !ok {
		return nil, ErrActionNotFound
	}
	return cloneAction(action), nil
}

func (r *memoryActionRepository) ListByAccount(ctx context.Context, accountRef string) ([]*model.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneActions(r.byAccount[accountRef]), nil
}

func (r *memoryActionRepository) ListAll(ctx context.Context) ([]*model.Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneActions(r.actions), nil
}

func (r *memoryActionRepository) AttachReceipts(ctx context.Context, id int64, receipts model.Receipts) (*model.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	action, ok := r.byID[id]
	if !ok {
		return nil, ErrActionNotFound
	}
	if action.ExternalTxHash == nil && receipts.ExternalTxHash != nil {
		action.ExternalTxHash = copyString(receipts.ExternalTxHash)
	}
	if action.ContractTxHash == nil && receipts.ContractTxHash != nil {
		action.ContractTxHash = copyString(receipts.ContractTxHash)
	}
	if action.AnchorTxHash == nil && receipts.AnchorTxHash != nil {
		action.AnchorTxHash = copyString(receipts.AnchorTxHash)
	}
	return cloneAction(action), nil
}

func cloneActions(list []*model.Action) []*model.Action {
	result := make([]*model.Action, 0, len(list))
	for _, a := range list {
		result = append(result, cloneAction(a))
	}
	return result
}

func cloneAction(a *model.Action) *model.Action {
	copied := *a
	copied.ExternalTxHash = copyString(a.ExternalTxHash)
	copied.ContractTxHash = copyString(a.ContractTxHash)
	copied.AnchorTxHash = copyString(a.AnchorTxHash)
	if a.CO2SavedKg != nil {
		v := *a.CO2SavedKg
		copied.CO2SavedKg = &v
	}
	return &copied
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
