package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"ecoprado/internal/infrastructure/ledger"
	"ecoprado/internal/infrastructure/lock"
	"ecoprado/internal/metrics"
	"ecoprado/internal/model"
	"ecoprado/internal/repository"
	"ecoprado/pkg/logger"

	"go.uber.org/zap"
)

// ============================================================================
// 结算引擎
// ============================================================================
//
// 奖励和兑换都遵循同一个形状：本地优先，外部尽力，回包前合并。
//
//   1. 持账户锁完成本地的"读-改-写"（记行动 + 入账 / 建订单 + 扣款），然后立即释放锁
//   2. 在独立的 goroutine 里发起外部账本操作（支付、合约记录、哈希锚定）
//   3. 回包最多等待 settle_wait：
//      - 外部结果及时返回：合并进响应（settled_external / settled_local）
//      - 超时：先返回 pending，外部结果到达后补写到行动或订单上
//
// 【关键点】外部账本的任何失败都不会让请求失败，也不会回滚本地修改。
// 外部操作最多尝试一次，不自动重试，失败原因分类后附在响应里。
//
// ============================================================================

type SettlementStatus string

const (
	SettledExternal   SettlementStatus = "settled_external"
	SettledLocal      SettlementStatus = "settled_local"
	SettlementPending SettlementStatus = "pending"
)

// 等待账户锁的上限，超时返回 lock.ErrLockFailed
const lockWait = 5 * time.Second

// DefaultMaxAirdrop 单次空投的默认上限
const DefaultMaxAirdrop int64 = 1000

const (
	workflowReport     = "report"
	workflowCalculator = "calculator"
	workflowAirdrop    = "airdrop"
	workflowPurchase   = "purchase"
)

// Settlement 外部结算结果
//
// settled_external 带回执；settled_local 带分类、处理建议和补充信息
type Settlement struct {
	Status  SettlementStatus `json:"status"`
	TxHash  *string          `json:"tx_hash,omitempty"`
	Code    ledger.Code      `json:"code,omitempty"`
	RawCode string           `json:"raw_code,omitempty"`
	Hint    string           `json:"hint,omitempty"`
	Meta    *ledger.Meta     `json:"meta,omitempty"`
}

func settlementFrom(receipt *ledger.Receipt, err error) Settlement {
	if err == nil && receipt != nil {
		hash := receipt.TxHash
		return Settlement{Status: SettledExternal, TxHash: &hash}
	}
	if err == nil {
		err = errors.New("外部账本未返回回执")
	}

	se := ledger.Classify(err)
	meta := se.Meta
	return Settlement{
		Status:  SettledLocal,
		Code:    se.Code,
		RawCode: se.RawCode,
		Hint:    se.Message,
		Meta:    &meta,
	}
}

type ReportRequest struct {
	PublicKey   string `json:"user_public_key" binding:"required"`
	ActionType  string `json:"action_type"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
}

type CalculatorSubmitRequest struct {
	PublicKey string `json:"user_public_key" binding:"required"`
	EstimateRequest
	Note string `json:"note"`
}

type AirdropRequest struct {
	PublicKey string `json:"public_key" binding:"required"`
	Amount    int64  `json:"amount"`
}

type RewardResult struct {
	Action     *model.Action `json:"action,omitempty"`
	Amount     int64         `json:"amount"`
	Balance    int64         `json:"balance"`
	Settlement Settlement    `json:"settlement"`
}

type rewardPlan struct {
	workflow   string
	accountRef string
	amount     int64
	memo       string
	// record 在持锁期间写入行动记录，为 nil 时不记录（空投）
	record   func(ctx context.Context) (*model.Action, error)
	contract bool
	anchor   bool
}

type settlementOutcome struct {
	settlement Settlement
}

type SettlementService struct {
	accounts   repository.AccountRepository
	balances   repository.BalanceStore
	catalog    repository.CatalogRepository
	orders     repository.OrderRepository
	actions    *ActionService
	locker     lock.AccountLocker
	gateway    ledger.Gateway
	syncer     *BalanceSyncer
	events     *EventWriter
	settleWait time.Duration
	timeout    time.Duration
	maxAirdrop int64
	logger     *zap.Logger

	inflight sync.WaitGroup
}

func NewSettlementService(stores *Stores, actions *ActionService, locker lock.AccountLocker, gateway ledger.Gateway,
	syncer *BalanceSyncer, events *EventWriter, settleWait, timeout time.Duration, maxAirdrop int64, log *zap.Logger) *SettlementService {
	if maxAirdrop <= 0 {
		maxAirdrop = DefaultMaxAirdrop
	}
	return &SettlementService{
		accounts:   stores.Accounts,
		balances:   stores.Balances,
		catalog:    stores.Catalog,
		orders:     stores.Orders,
		actions:    actions,
		locker:     locker,
		gateway:    gateway,
		syncer:     syncer,
		events:     events,
		settleWait: settleWait,
		timeout:    timeout,
		maxAirdrop: maxAirdrop,
		logger:     log,
	}
}

// ReportAction 上报行动并发放奖励
func (s *SettlementService) ReportAction(ctx context.Context, req *ReportRequest) (*RewardResult, error) {
	accountRef := strings.TrimSpace(req.PublicKey)
	if accountRef == "" {
		return nil, newValidationError("user_public_key", "不能为空")
	}

	actionType := model.NormalizeActionType(strings.TrimSpace(req.ActionType))
	amount := RewardFor(actionType)

	return s.reward(ctx, rewardPlan{
		workflow:   workflowReport,
		accountRef: accountRef,
		amount:     amount,
		memo:       string(actionType),
		record: func(ctx context.Context) (*model.Action, error) {
			return s.actions.Record(ctx, accountRef, string(actionType), req.Description, req.Evidence)
		},
		contract: true,
	})
}

// SubmitCalculation CO2 计算器提交：估算 + 记录行动 + 奖励 + 哈希锚定
func (s *SettlementService) SubmitCalculation(ctx context.Context, req *CalculatorSubmitRequest) (*RewardResult, error) {
	accountRef := strings.TrimSpace(req.PublicKey)
	if accountRef == "" {
		return nil, newValidationError("user_public_key", "不能为空")
	}

	est, err := EstimateCO2(req.EstimateRequest)
	if err != nil {
		return nil, err
	}

	return s.reward(ctx, rewardPlan{
		workflow:   workflowCalculator,
		accountRef: accountRef,
		amount:     est.Tokens,
		memo:       "calc",
		record: func(ctx context.Context) (*model.Action, error) {
			return s.actions.RecordCalculated(ctx, accountRef, req.EstimateRequest, est, req.Note)
		},
		contract: true,
		anchor:   true,
	})
}

// Airdrop 测试空投，金额至少为 1、至多 maxAirdrop，不记录行动，也不走合约通道
func (s *SettlementService) Airdrop(ctx context.Context, req *AirdropRequest) (*RewardResult, error) {
	accountRef := strings.TrimSpace(req.PublicKey)
	if accountRef == "" {
		return nil, newValidationError("public_key", "不能为空")
	}

	amount := req.Amount
	if amount < 1 {
		amount = 1
	}
	if amount > s.maxAirdrop {
		return nil, newValidationError("amount", fmt.Sprintf("单次空投不能超过 %d", s.maxAirdrop))
	}

	return s.reward(ctx, rewardPlan{
		workflow:   workflowAirdrop,
		accountRef: accountRef,
		amount:     amount,
		memo:       "airdrop",
	})
}

func (s *SettlementService) reward(ctx context.Context, plan rewardPlan) (*RewardResult, error) {
	if _, err := s.accounts.GetByPublicKey(ctx, plan.accountRef); err != nil {
		return nil, err
	}

	action, balance, err := s.creditLocally(ctx, plan)
	if err != nil {
		return nil, err
	}

	result := &RewardResult{Action: action, Amount: plan.amount, Balance: balance}

	done := s.goSettle(ctx, func(ctx context.Context) settlementOutcome {
		return s.settleReward(ctx, plan, action)
	})

	outcome, finished := s.await(ctx, done)
	if !finished {
		result.Settlement = Settlement{Status: SettlementPending}
		s.logger.Info("[Settlement] 外部结算未及时完成，先返回本地结果",
			zap.String("workflow", plan.workflow),
			logger.Account(plan.accountRef))
		return result, nil
	}

	result.Settlement = outcome.settlement
	if b, err := s.balances.Get(ctx, plan.accountRef); err == nil {
		result.Balance = b
	}
	if action != nil {
		if refreshed, err := s.actions.Get(ctx, action.ID); err == nil {
			result.Action = refreshed
		}
	}
	return result, nil
}

// creditLocally 持锁记录行动并入账
func (s *SettlementService) creditLocally(ctx context.Context, plan rewardPlan) (*model.Action, int64, error) {
	unlock, err := lock.LockWithTimeout(ctx, s.locker, plan.accountRef, lockWait)
	if err != nil {
		return nil, 0, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer unlock()

	// 先检查入账后是否溢出，避免记下行动却入不了账
	current, err := s.balances.Get(ctx, plan.accountRef)
	if err != nil {
		return nil, 0, fmt.Errorf("查询余额失败: %w", err)
	}
	if plan.amount > math.MaxInt64-current {
		return nil, 0, repository.ErrBalanceOverflow
	}

	var action *model.Action
	remark := plan.workflow
	if plan.record != nil {
		action, err = plan.record(ctx)
		if err != nil {
			return nil, 0, err
		}
		remark = fmt.Sprintf("%s-%d", plan.workflow, action.ID)
	}

	balance, err := s.balances.Credit(ctx, plan.accountRef, plan.amount, remark)
	if err != nil {
		return nil, 0, fmt.Errorf("入账失败: %w", err)
	}
	metrics.RecordBalanceChange(model.EntryTypeCredit, plan.amount)

	s.logger.Info("[Settlement] 本地入账成功",
		zap.String("workflow", plan.workflow),
		logger.Account(plan.accountRef),
		zap.Int64("amount", plan.amount),
		zap.Int64("balance", balance))
	return action, balance, nil
}

// settleReward 在后台执行：合约记录、哈希锚定和支付相互独立
func (s *SettlementService) settleReward(ctx context.Context, plan rewardPlan, action *model.Action) settlementOutcome {
	var wg sync.WaitGroup

	if plan.contract && action != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.recordOnContract(ctx, action)
		}()
	}

	if plan.anchor && action != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.anchorAction(ctx, action)
		}()
	}

	receipt, err := s.gateway.Pay(ctx, plan.accountRef, plan.amount, plan.memo)
	settlement := settlementFrom(receipt, err)
	if err == nil {
		if action != nil {
			s.attachReceipts(ctx, action.ID, model.Receipts{ExternalTxHash: settlement.TxHash})
		}
		if _, syncErr := s.syncer.sync(ctx, plan.accountRef, false); syncErr != nil {
			s.logger.Warn("[Settlement] 支付后校准余额失败", logger.Account(plan.accountRef), zap.Error(syncErr))
		}
	}

	wg.Wait()

	metrics.RecordSettlement(plan.workflow, string(settlement.Status), string(settlement.Code))

	payload := map[string]interface{}{
		"workflow": plan.workflow,
		"account":  plan.accountRef,
		"amount":   plan.amount,
		"status":   settlement.Status,
		"code":     settlement.Code,
		"tx_hash":  settlement.TxHash,
	}
	if action != nil {
		payload["action_id"] = action.ID
	}
	s.events.emit(ctx, model.EventRewardSettled, payload)

	s.logger.Info("[Settlement] 外部结算结束",
		zap.String("workflow", plan.workflow),
		logger.Account(plan.accountRef),
		zap.String("status", string(settlement.Status)),
		zap.String("code", string(settlement.Code)))
	return settlementOutcome{settlement: settlement}
}

func (s *SettlementService) recordOnContract(ctx context.Context, action *model.Action) {
	receipt, err := s.gateway.InvokeContract(ctx, ledger.ContractCall{
		Function: "report_action",
		Args: []ledger.ContractArg{
			{Type: "address", Value: action.AccountRef},
			{Type: "symbol", Value: string(action.ActionType)},
			{Type: "string", Value: action.Description},
			{Type: "string", Value: action.Evidence},
		},
	})
	if err != nil {
		s.logger.Debug("[Settlement] 合约记录未完成", zap.Int64("action_id", action.ID), zap.Error(err))
		return
	}
	hash := receipt.TxHash
	s.attachReceipts(ctx, action.ID, model.Receipts{ContractTxHash: &hash})
}

func (s *SettlementService) anchorAction(ctx context.Context, action *model.Action) {
	hash, err := contentHash(action)
	if err != nil {
		s.logger.Error("[Settlement] 计算行动哈希失败", zap.Int64("action_id", action.ID), zap.Error(err))
		return
	}

	receipt, err := s.gateway.AnchorHash(ctx, fmt.Sprintf("ECO-ACT-%d", action.ID), hash)
	if err != nil {
		s.logger.Debug("[Settlement] 行动哈希锚定未完成", zap.Int64("action_id", action.ID), zap.Error(err))
		return
	}
	txHash := receipt.TxHash
	s.attachReceipts(ctx, action.ID, model.Receipts{AnchorTxHash: &txHash})
}

func (s *SettlementService) attachReceipts(ctx context.Context, actionID int64, receipts model.Receipts) {
	if _, err := s.actions.AttachReceipts(ctx, actionID, receipts); err != nil {
		s.logger.Error("[Settlement] 补写回执失败", zap.Int64("action_id", actionID), zap.Error(err))
	}
}

// goSettle 在后台执行外部结算
//
// 外部调用不随请求取消：客户端断开后结算继续执行，结果补写到存储中。
// 上限是账本超时时间。
func (s *SettlementService) goSettle(ctx context.Context, fn func(ctx context.Context) settlementOutcome) <-chan settlementOutcome {
	done := make(chan settlementOutcome, 1)
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		done <- fn(settleCtx)
	}()
	return done
}

// await 最多等待 settleWait，返回外部结算是否已完成
func (s *SettlementService) await(ctx context.Context, done <-chan settlementOutcome) (settlementOutcome, bool) {
	if s.settleWait <= 0 {
		select {
		case o := <-done:
			return o, true
		default:
			return settlementOutcome{}, false
		}
	}

	timer := time.NewTimer(s.settleWait)
	defer timer.Stop()

	select {
	case o := <-done:
		return o, true
	case <-timer.C:
		return settlementOutcome{}, false
	case <-ctx.Done():
		return settlementOutcome{}, false
	}
}

// Wait 等待所有后台结算结束（优雅关闭时使用）
func (s *SettlementService) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// contentHash 记录 JSON 的 sha256，用作防篡改锚定
func contentHash(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}
