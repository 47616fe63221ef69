package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecoprado/internal/config"
	"ecoprado/internal/metrics"
	"ecoprado/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountLoader 加载外部账本账户，不存在时返回 ErrAccountNotFound
type AccountLoader interface {
	LoadAccount(ctx context.Context, accountID string) (*AccountSnapshot, error)
}

// Submitter 提交由分发账户签名的交易
type Submitter interface {
	SubmitPayment(ctx context.Context, req PaymentRequest) (*Receipt, error)
	SubmitManageData(ctx context.Context, req ManageDataRequest) (*Receipt, error)
}

// ContractClient 合约调用通道，先模拟再提交
type ContractClient interface {
	Simulate(ctx context.Context, call ContractCall) (*Simulation, error)
	Send(ctx context.Context, call ContractCall, sim *Simulation) (*Receipt, error)
}

// Gateway 外部账本网关
//
// 所有方法都可能失败且很慢，内部不做重试。
type Gateway interface {
	Configured() bool
	IssuerKey() string
	AssetCode() string
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	HasTrustline(ctx context.Context, accountID string) (bool, error)
	Pay(ctx context.Context, accountID string, amount int64, memo string) (*Receipt, error)
	AnchorHash(ctx context.Context, label string, hash []byte) (*Receipt, error)
	InvokeContract(ctx context.Context, call ContractCall) (*Receipt, error)
	Status(ctx context.Context) Status
}

const (
	maxMemoBytes  = 28
	maxLabelBytes = 64
	defaultLabel  = "ECO-ACT"
)

type Options struct {
	AssetCode           string
	IssuerPublicKey     string
	DistributionAccount string
	ContractID          string
	HorizonURL          string
	Network             string
}

type gateway struct {
	opts      Options
	loader    AccountLoader
	submitter Submitter
	contracts ContractClient
	logger    *zap.Logger
}

// NewGateway 任一协作方为 nil 时，对应的操作返回 NOT_CONFIGURED
func NewGateway(opts Options, loader AccountLoader, submitter Submitter, contracts ContractClient, log *zap.Logger) Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &gateway{
		opts:      opts,
		loader:    loader,
		submitter: submitter,
		contracts: contracts,
		logger:    log.Named("ledger"),
	}
}

// NewFromConfig 按配置创建 Horizon 读取端和签名服务客户端
func NewFromConfig(cfg *config.Config, log *zap.Logger) Gateway {
	opts := Options{
		AssetCode:           cfg.Ledger.AssetCode,
		IssuerPublicKey:     cfg.Ledger.IssuerPublicKey,
		DistributionAccount: cfg.Ledger.DistributionAccount,
		ContractID:          cfg.Contract.ContractID,
		HorizonURL:          cfg.Ledger.HorizonURL,
		Network:             cfg.Ledger.Network,
	}

	var (
		loader    AccountLoader
		submitter Submitter
		contracts ContractClient
	)
	if cfg.Ledger.HorizonURL != "" {
		loader = NewHorizonClient(cfg.Ledger.HorizonURL, cfg.Ledger.Timeout())
	}
	if cfg.Ledger.SignerURL != "" {
		signer := NewSignerClient(cfg.Ledger.SignerURL, cfg.Ledger.Timeout())
		submitter = signer
		if cfg.Contract.ContractID != "" {
			contracts = signer
		}
	}
	return NewGateway(opts, loader, submitter, contracts, log)
}

func (g *gateway) Configured() bool {
	return g.opts.IssuerPublicKey != "" &&
		g.opts.DistributionAccount != "" &&
		g.loader != nil &&
		g.submitter != nil
}

func (g *gateway) IssuerKey() string {
	return g.opts.IssuerPublicKey
}

func (g *gateway) AssetCode() string {
	return g.opts.AssetCode
}

func (g *gateway) notConfigured() *SettlementError {
	e := newSettlementError(CodeNotConfigured, nil)
	e.Meta.IssuerKey = g.opts.IssuerPublicKey
	return e
}

// GetBalance 外部账本上该资产的余额，没有信任线时为 0
func (g *gateway) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if g.loader == nil || g.opts.IssuerPublicKey == "" {
		return decimal.Zero, g.notConfigured()
	}

	start := time.Now()
	account, err := g.loader.LoadAccount(ctx, accountID)
	metrics.ObserveLedgerCall("load_account", start, err)
	if err != nil {
		return decimal.Zero, err
	}

	balance, _ := account.Asset(g.opts.AssetCode, g.opts.IssuerPublicKey)
	return balance, nil
}

// HasTrustline 返回错误时表示"未知"
func (g *gateway) HasTrustline(ctx context.Context, accountID string) (bool, error) {
	if g.loader == nil || g.opts.IssuerPublicKey == "" {
		return false, g.notConfigured()
	}

	start := time.Now()
	account, err := g.loader.LoadAccount(ctx, accountID)
	metrics.ObserveLedgerCall("load_account", start, err)
	if err != nil {
		return false, err
	}

	_, ok := account.Asset(g.opts.AssetCode, g.opts.IssuerPublicKey)
	return ok, nil
}

// Pay 从分发账户向用户支付代币
//
// 【关键点】提交之前先做前置检查，把最常见的失败变成清晰的分类：
//  1. 分发账户能否加载               -> DISTRIBUTION_UNAVAILABLE
//  2. 分发账户是否有该资产的信任线   -> DISTRIBUTION_NO_TRUSTLINE
//  3. 分发账户余额是否足够           -> INSUFFICIENT_BALANCE
//  4. 目标账户是否存在               -> ACCOUNT_NOT_FOUND
//  5. 目标账户是否有信任线           -> NO_TRUSTLINE（最常见）
//
// 目标账户加载出现 404 以外的错误时不拦截，直接尝试提交，由账本给出结果码。
func (g *gateway) Pay(ctx context.Context, accountID string, amount int64, memo string) (*Receipt, error) {
	if !g.Configured() {
		return nil, g.notConfigured()
	}
	if amount <= 0 {
		return nil, g.withIssuer(&SettlementError{
			Code:    CodeLedgerRejected,
			Message: "支付金额必须大于0",
			RawCode: "invalid_amount",
		})
	}

	start := time.Now()
	receipt, err := g.pay(ctx, accountID, amount, memo)
	metrics.ObserveLedgerCall("payment", start, err)
	if err != nil {
		se := g.withIssuer(Classify(err))
		g.logger.Warn("[Ledger] 支付失败",
			logger.Account(accountID),
			zap.Int64("amount", amount),
			zap.String("code", string(se.Code)),
			zap.String("raw_code", se.RawCode),
			zap.Error(err))
		return nil, se
	}

	g.logger.Info("[Ledger] 支付成功",
		logger.Account(accountID),
		zap.Int64("amount", amount),
		zap.String("tx_hash", receipt.TxHash))
	return receipt, nil
}

func (g *gateway) pay(ctx context.Context, accountID string, amount int64, memo string) (*Receipt, error) {
	required := decimal.NewFromInt(amount)

	distribution, err := g.loader.LoadAccount(ctx, g.opts.DistributionAccount)
	if err != nil {
		return nil, newSettlementError(CodeDistributionUnavailable, err)
	}

	current, ok := distribution.Asset(g.opts.AssetCode, g.opts.IssuerPublicKey)
	if !ok {
		return nil, newSettlementError(CodeDistributionNoTrustline, nil)
	}
	if current.LessThan(required) {
		e := newSettlementError(CodeInsufficientBalance, nil)
		e.Meta.CurrentBalance = &current
		e.Meta.Required = &amount
		return nil, e
	}

	destination, err := g.loader.LoadAccount(ctx, accountID)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return nil, newSettlementError(CodeAccountNotFound, err)
	case err != nil:
		g.logger.Warn("[Ledger] 目标账户校验失败，继续提交", logger.Account(accountID), zap.Error(err))
	default:
		if _, ok := destination.Asset(g.opts.AssetCode, g.opts.IssuerPublicKey); !ok {
			e := newSettlementError(CodeNoTrustline, nil)
			e.Meta.NeedsTrustline = true
			return nil, e
		}
	}

	return g.submitter.SubmitPayment(ctx, PaymentRequest{
		Source:      g.opts.DistributionAccount,
		Destination: accountID,
		AssetCode:   g.opts.AssetCode,
		AssetIssuer: g.opts.IssuerPublicKey,
		Amount:      required.String(),
		Memo:        truncateBytes(memo, maxMemoBytes),
	})
}

func (g *gateway) withIssuer(e *SettlementError) *SettlementError {
	if e.Meta.IssuerKey == "" {
		e.Meta.IssuerKey = g.opts.IssuerPublicKey
	}
	return e
}

// AnchorHash 以 manageData 的方式把哈希写入分发账户，只做防篡改证明
func (g *gateway) AnchorHash(ctx context.Context, label string, hash []byte) (*Receipt, error) {
	if g.submitter == nil || g.opts.DistributionAccount == "" {
		return nil, g.notConfigured()
	}
	if label == "" {
		label = defaultLabel
	}

	start := time.Now()
	receipt, err := g.submitter.SubmitManageData(ctx, ManageDataRequest{
		Source: g.opts.DistributionAccount,
		Name:   truncateBytes(label, maxLabelBytes),
		Value:  hash,
	})
	metrics.ObserveLedgerCall("anchor", start, err)
	if err != nil {
		se := Classify(err)
		g.logger.Warn("[Ledger] 哈希锚定失败",
			zap.String("label", label),
			zap.String("code", string(se.Code)),
			zap.Error(err))
		return nil, se
	}
	return receipt, nil
}

// InvokeContract 两阶段合约调用：模拟失败时不会提交
func (g *gateway) InvokeContract(ctx context.Context, call ContractCall) (*Receipt, error) {
	if g.contracts == nil || g.opts.ContractID == "" {
		return nil, g.notConfigured()
	}
	if call.ContractID == "" {
		call.ContractID = g.opts.ContractID
	}

	start := time.Now()
	receipt, err := g.invoke(ctx, call)
	metrics.ObserveLedgerCall("contract", start, err)
	if err != nil {
		g.logger.Warn("[Ledger] 合约调用失败",
			zap.String("function", call.Function),
			zap.Error(err))
		return nil, Classify(err)
	}
	return receipt, nil
}

func (g *gateway) invoke(ctx context.Context, call ContractCall) (*Receipt, error) {
	sim, err := g.contracts.Simulate(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("合约模拟失败: %w", err)
	}
	if sim.Error != "" {
		return nil, &RejectionError{Transaction: "simulation_failed", Detail: sim.Error}
	}

	receipt, err := g.contracts.Send(ctx, call, sim)
	if err != nil {
		return nil, fmt.Errorf("合约提交失败: %w", err)
	}
	return receipt, nil
}

// Status 配置与分发账户余额概况
func (g *gateway) Status(ctx context.Context) Status {
	status := Status{
		Configured:         g.Configured(),
		DistributionKey:    "未配置分发账户",
		IssuerKey:          "未配置发行方",
		AssetCode:          g.opts.AssetCode,
		AssetStatus:        AssetStatusUnknown,
		ContractConfigured: g.contracts != nil && g.opts.ContractID != "",
		HorizonURL:         g.opts.HorizonURL,
		Network:            g.opts.Network,
	}
	if g.opts.DistributionAccount != "" {
		status.DistributionKey = logger.ShortKey(g.opts.DistributionAccount)
	}
	if g.opts.IssuerPublicKey != "" {
		status.IssuerKey = logger.ShortKey(g.opts.IssuerPublicKey)
	}
	if g.opts.ContractID != "" {
		id := g.opts.ContractID
		status.ContractID = &id
	}

	if !status.Configured {
		return status
	}

	balance, err := g.GetBalance(ctx, g.opts.DistributionAccount)
	if err != nil {
		status.AssetStatus = AssetStatusError
		return status
	}
	status.DistributionBalance = &balance
	if balance.IsPositive() {
		status.AssetStatus = AssetStatusOK
	} else {
		status.AssetStatus = AssetStatusNoBalance
	}
	return status
}
