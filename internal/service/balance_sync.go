package service

import (
	"context"
	"time"

	"ecoprado/internal/infrastructure/cache"
	"ecoprado/internal/infrastructure/ledger"
	"ecoprado/internal/infrastructure/lock"
	"ecoprado/internal/metrics"
	"ecoprado/internal/model"
	"ecoprado/internal/repository"
	"ecoprado/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================================
// 本地余额与外部账本对账
// ============================================================================
//
// 外部余额只是"参考"：
//   - 读外部账本时不持有账户锁（网络请求可能很慢）
//   - 读到正数才覆盖本地余额，读到 0 或读取失败都保留本地积累的余额
//   - 覆盖时重新短暂加锁，和兑换扣款互斥
//
// ============================================================================

type BalanceSyncer struct {
	balances  repository.BalanceStore
	locker    lock.AccountLocker
	gateway   ledger.Gateway
	snapshots cache.BalanceSnapshotCache
	timeout   time.Duration
	logger    *zap.Logger
}

func NewBalanceSyncer(balances repository.BalanceStore, locker lock.AccountLocker, gateway ledger.Gateway, snapshots cache.BalanceSnapshotCache, timeout time.Duration, log *zap.Logger) *BalanceSyncer {
	return &BalanceSyncer{
		balances:  balances,
		locker:    locker,
		gateway:   gateway,
		snapshots: snapshots,
		timeout:   timeout,
		logger:    log,
	}
}

// observe 读取外部余额。useCache=false 时跳过缓存直接读外部并刷新缓存
func (s *BalanceSyncer) observe(ctx context.Context, accountRef string, useCache bool) (decimal.Decimal, bool) {
	if !s.gateway.Configured() {
		return decimal.Zero, false
	}

	if useCache && s.snapshots != nil {
		value, ok, err := s.snapshots.Get(ctx, accountRef)
		if err != nil {
			s.logger.Warn("[Reconcile] 读取余额快照失败", logger.Account(accountRef), zap.Error(err))
		} else if ok {
			return value, true
		}
	}

	readCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	value, err := s.gateway.GetBalance(readCtx, accountRef)
	if err != nil {
		s.logger.Debug("[Reconcile] 外部余额不可用，使用本地余额", logger.Account(accountRef), zap.Error(err))
		return decimal.Zero, false
	}

	if s.snapshots != nil {
		if err := s.snapshots.Set(ctx, accountRef, value); err != nil {
			s.logger.Warn("[Reconcile] 写入余额快照失败", logger.Account(accountRef), zap.Error(err))
		}
	}
	return value, true
}

// sync 观测外部余额并按规则校准本地余额，返回校准后的本地余额
func (s *BalanceSyncer) sync(ctx context.Context, accountRef string, useCache bool) (int64, error) {
	observed, ok := s.observe(ctx, accountRef, useCache)
	if !ok || !observed.IsPositive() {
		return s.balances.Get(ctx, accountRef)
	}

	// 账本余额可能带小数，本地余额是整数单位
	units := observed.IntPart()

	unlock, err := lock.LockWithTimeout(ctx, s.locker, accountRef, lockWait)
	if err != nil {
		return 0, err
	}
	defer unlock()

	before, err := s.balances.Get(ctx, accountRef)
	if err != nil {
		return 0, err
	}
	balance, applied, err := s.balances.Reconcile(ctx, accountRef, units)
	if err != nil {
		return 0, err
	}
	if applied && balance != before {
		metrics.RecordBalanceChange(model.EntryTypeReconcile, balance-before)
		s.logger.Info("[Reconcile] 按外部账本校准余额",
			logger.Account(accountRef),
			zap.Int64("before", before),
			zap.Int64("after", balance))
	}
	return balance, nil
}
