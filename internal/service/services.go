package service

import (
	"time"

	"ecoprado/internal/config"
	"ecoprado/internal/infrastructure/cache"
	"ecoprado/internal/infrastructure/ledger"
	"ecoprado/internal/infrastructure/lock"

	"go.uber.org/zap"
)

type Options struct {
	// SettleWait 响应等待外部结算的最长时间
	SettleWait time.Duration
	// LedgerTimeout 单次外部结算（含对账读取）的上限
	LedgerTimeout time.Duration
	DefaultRole   string
	EventTopic    string
	// MaxAirdrop 单次空投上限，<=0 时使用 DefaultMaxAirdrop
	MaxAirdrop int64
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SettleWait:    cfg.Business.SettleWait(),
		LedgerTimeout: cfg.Ledger.Timeout(),
		DefaultRole:   cfg.Business.DefaultRole,
		EventTopic:    cfg.Kafka.Topic.Settlement,
		MaxAirdrop:    cfg.Business.MaxAirdropAmount,
	}
}

// Services 装配好的全部业务服务
type Services struct {
	Accounts    *AccountService
	Actions     *ActionService
	Settlement  *SettlementService
	Marketplace *MarketplaceService
	Stats       *StatsService
	Gateway     ledger.Gateway
}

func NewServices(stores *Stores, gateway ledger.Gateway, snapshots cache.BalanceSnapshotCache, opts Options, log *zap.Logger) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.LedgerTimeout <= 0 {
		opts.LedgerTimeout = 30 * time.Second
	}
	if snapshots == nil {
		snapshots = cache.NewMemorySnapshotCache(30 * time.Second)
	}

	locker := lock.NewAccountLocker()
	syncer := NewBalanceSyncer(stores.Balances, locker, gateway, snapshots, opts.LedgerTimeout, log)
	actions := NewActionService(stores.Actions)
	events := NewEventWriter(stores.Outbox, opts.EventTopic, log)

	return &Services{
		Accounts:    NewAccountService(stores, syncer, opts.DefaultRole, log),
		Actions:     actions,
		Settlement:  NewSettlementService(stores, actions, locker, gateway, syncer, events, opts.SettleWait, opts.LedgerTimeout, opts.MaxAirdrop, log),
		Marketplace: NewMarketplaceService(stores),
		Stats:       NewStatsService(stores),
		Gateway:     gateway,
	}
}
