package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"ecoprado/internal/model"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
)

// AccountRepository 账户注册表
type AccountRepository interface {
	// GetOrCreate 按公钥查找账户，不存在则创建。created 表示本次是否新建
	GetOrCreate(ctx context.Context, account *model.Account) (result *model.Account, created bool, err error)
	GetByPublicKey(ctx context.Context, publicKey string) (*model.Account, error)
	Count(ctx context.Context) (int, error)
}

type memoryAccountRepository struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[string]*model.Account
}

func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{accounts: make(map[string]*model.Account)}
}

func (r *memoryAccountRepository) GetOrCreate(ctx context.Context, account *model.Account) (*model.Account, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.accounts[account.PublicKey]; ok {
		copied := *existing
		return &copied, false, nil
	}

	r.nextID++
	stored := *account
	stored.ID = r.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	r.accounts[stored.PublicKey] = &stored

	copied := stored
	return &copied, true, nil
}

func (r *memoryAccountRepository) GetByPublicKey(ctx context.Context, publicKey string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[publicKey]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (r *memoryAccountRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts), nil
}
