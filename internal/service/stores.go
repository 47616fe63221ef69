package service

import (
	"ecoprado/internal/repository"
)

// Stores 各服务共享的存储
type Stores struct {
	Accounts repository.AccountRepository
	Actions  repository.ActionRepository
	Balances repository.BalanceStore
	Catalog  repository.CatalogRepository
	Orders   repository.OrderRepository
	// Outbox 为 nil 时不写结算事件
	Outbox repository.OutboxRepository
}

// NewMemoryStores 全部使用内存实现，不含发件箱
func NewMemoryStores() *Stores {
	return &Stores{
		Accounts: repository.NewMemoryAccountRepository(),
		Actions:  repository.NewMemoryActionRepository(),
		Balances: repository.NewMemoryBalanceStore(),
		Catalog:  repository.NewStaticCatalog(nil),
		Orders:   repository.NewMemoryOrderRepository(),
	}
}
