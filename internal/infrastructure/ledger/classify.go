package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 外部账本错误分类
// ============================================================================
//
// 外部账本失败时，奖励和兑换依旧在本地成功，
// 失败原因作为诊断信息附在响应里。分类是一个封闭的枚举，
// 原始结果码经过一张显式映射表转换，映射不到的统一归为 LEDGER_REJECTED 并保留原始码。
//
// ============================================================================

// Code 外部账本失败分类
type Code string

const (
	CodeNotConfigured           Code = "NOT_CONFIGURED"
	CodeDistributionUnavailable Code = "DISTRIBUTION_UNAVAILABLE"
	CodeDistributionNoTrustline Code = "DISTRIBUTION_NO_TRUSTLINE"
	CodeInsufficientBalance     Code = "INSUFFICIENT_BALANCE"
	CodeAccountNotFound         Code = "ACCOUNT_NOT_FOUND"
	CodeNoTrustline             Code = "NO_TRUSTLINE"
	CodeLineFull                Code = "LINE_FULL"
	CodeUnderfunded             Code = "UNDERFUNDED"
	CodeNoDestination           Code = "NO_DESTINATION"
	CodeLowReserve              Code = "LOW_RESERVE"
	CodeAlreadyExists           Code = "ALREADY_EXISTS"
	CodeBadAuth                 Code = "BAD_AUTH"
	CodeInsufficientFee         Code = "INSUFFICIENT_FEE"
	CodeLedgerRejected          Code = "LEDGER_REJECTED"
	CodeLedgerUnavailable       Code = "LEDGER_UNAVAILABLE"
)

// AllCodes 全部分类
func AllCodes() []Code {
	return []Code{
		CodeNotConfigured,
		CodeDistributionUnavailable,
		CodeDistributionNoTrustline,
		CodeInsufficientBalance,
		CodeAccountNotFound,
		CodeNoTrustline,
		CodeLineFull,
		CodeUnderfunded,
		CodeNoDestination,
		CodeLowReserve,
		CodeAlreadyExists,
		CodeBadAuth,
		CodeInsufficientFee,
		CodeLedgerRejected,
		CodeLedgerUnavailable,
	}
}

// 交易级结果码，优先于操作级结果码
var transactionCodes = map[string]Code{
	"bad_auth":         CodeBadAuth,
	"insufficient_fee": CodeInsufficientFee,
}

// 操作级结果码
var operationCodes = map[string]Code{
	"no_trust":       CodeNoTrustline,
	"line_full":      CodeLineFull,
	"underfunded":    CodeUnderfunded,
	"no_destination": CodeNoDestination,
	"low_reserve":    CodeLowReserve,
	"already_exists": CodeAlreadyExists,
}

var hints = map[Code]string{
	CodeNotConfigured:           "外部账本未配置（缺少发行方、分发账户或服务地址），奖励只记在本地",
	CodeDistributionUnavailable: "无法加载分发账户，可能不存在或未充值",
	CodeDistributionNoTrustline: "分发账户没有该资产的信任线，需要先为分发账户建立信任线",
	CodeInsufficientBalance:     "分发账户资产余额不足，需要发行方补充代币",
	CodeAccountNotFound:         "目标账户在外部账本上不存在，需要先创建并充值（至少 1 XLM）",
	CodeNoTrustline:             "目标账户需要先为该资产建立信任线才能接收代币，请在钱包中添加信任线",
	CodeLineFull:                "目标账户信任线额度已满，请提高信任线额度",
	CodeUnderfunded:             "分发账户资产不足，无法完成支付",
	CodeNoDestination:           "目标账户不存在或未激活",
	CodeLowReserve:              "账户原生币余额不足以维持最低储备",
	CodeAlreadyExists:           "操作已存在（可能是重复提交）",
	CodeBadAuth:                 "交易签名校验失败（bad auth）",
	CodeInsufficientFee:         "交易手续费不足",
	CodeLedgerRejected:          "外部账本拒绝了交易，详见原始结果码",
	CodeLedgerUnavailable:       "外部账本暂不可用，奖励已记在本地",
}

// Hint 分类对应的处理建议
func (c Code) Hint() string {
	if h, ok := hints[c]; ok {
		return h
	}
	return hints[CodeLedgerRejected]
}

// Meta 处理建议所需的补充信息
type Meta struct {
	IssuerKey      string           `json:"issuer_key,omitempty"`
	NeedsTrustline bool             `json:"needs_trustline,omitempty"`
	CurrentBalance *decimal.Decimal `json:"current_balance,omitempty"`
	Required       *int64           `json:"required,omitempty"`
}

// SettlementError 已分类的外部账本失败
type SettlementError struct {
	Code    Code
	Message string
	RawCode string
	Meta    Meta
	Err     error
}

func (e *SettlementError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RawCode != "" {
		msg += " [" + e.RawCode + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

func newSettlementError(code Code, err error) *SettlementError {
	return &SettlementError{Code: code, Message: code.Hint(), Err: err}
}

func normalizeRawCode(raw string) string {
	code := strings.ToLower(strings.TrimSpace(raw))
	code = strings.TrimPrefix(code, "op_")
	code = strings.TrimPrefix(code, "tx_")
	return code
}

// ClassifyRejection 按映射表分类账本拒绝
func ClassifyRejection(r *RejectionError) *SettlementError {
	if code, ok := transactionCodes[normalizeRawCode(r.Transaction)]; ok {
		e := newSettlementError(code, r)
		e.RawCode = r.Transaction
		return e
	}

	for _, op := range r.Operations {
		normalized := normalizeRawCode(op)
		if normalized == "" || normalized == "success" {
			continue
		}
		if code, ok := operationCodes[normalized]; ok {
			e := newSettlementError(code, r)
			e.RawCode = op
			return e
		}
		e := newSettlementError(CodeLedgerRejected, r)
		e.RawCode = op
		return e
	}

	e := newSettlementError(CodeLedgerRejected, r)
	e.RawCode = r.Transaction
	return e
}

// Classify 把任意外部账本错误转换为 SettlementError
func Classify(err error) *SettlementError {
	if err == nil {
		return nil
	}

	var se *SettlementError
	if errors.As(err, &se) {
		return se
	}
	var re *RejectionError
	if errors.As(err, &re) {
		return ClassifyRejection(re)
	}
	if errors.Is(err, ErrAccountNotFound) {
		return newSettlementError(CodeAccountNotFound, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		e := newSettlementError(CodeLedgerUnavailable, err)
		e.RawCode = "timeout"
		return e
	}
	return newSettlementError(CodeLedgerUnavailable, err)
}
