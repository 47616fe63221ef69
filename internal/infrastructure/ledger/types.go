package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound = errors.New("外部账本账户不存在")
)

// Receipt 外部账本交易回执
type Receipt struct {
	TxHash string `json:"hash"`
}

// AssetBalance 账户中某一资产的余额
type AssetBalance struct {
	AssetType   string          `json:"asset_type"`
	AssetCode   string          `json:"asset_code"`
	AssetIssuer string          `json:"asset_issuer"`
	Balance     decimal.Decimal `json:"balance"`
}

// AccountSnapshot 从外部账本加载到的账户
type AccountSnapshot struct {
	ID       string
	Sequence string
	Balances []AssetBalance
}

// Asset 查找指定资产余额，ok=false 表示没有该资产的信任线
func (a *AccountSnapshot) Asset(code, issuer string) (decimal.Decimal, bool) {
	for _, b := range a.Balances {
		if b.AssetCode == code && b.AssetIssuer == issuer {
			return b.Balance, true
		}
	}
	return decimal.Zero, false
}

// PaymentRequest 由签名服务从分发账户发出的资产支付
type PaymentRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
	Amount      string `json:"amount"`
	Memo        string `json:"memo,omitempty"`
}

// ManageDataRequest 任意数据写入（用于哈希锚定），Value 以 base64 传输
type ManageDataRequest struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Value  []byte `json:"value"`
}

// ContractArg 合约调用参数，Type: address / symbol / string
type ContractArg struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ContractCall 合约调用
type ContractCall struct {
	ContractID string        `json:"contract_id"`
	Function   string        `json:"function"`
	Args       []ContractArg `json:"args"`
}

// Simulation 合约调用的模拟结果，Error 非空表示模拟失败
type Simulation struct {
	TransactionData string `json:"transaction_data"`
	MinResourceFee  string `json:"min_resource_fee"`
	Error           string `json:"error,omitempty"`
}

// RejectionError 外部账本拒绝了交易，携带原始结果码
type RejectionError struct {
	Transaction string
	Operations  []string
	Detail      string
}

func (e *RejectionError) Error() string {
	var b strings.Builder
	b.WriteString("外部账本拒绝交易")
	if e.Transaction != "" {
		fmt.Fprintf(&b, ": transaction=%s", e.Transaction)
	}
	if len(e.Operations) > 0 {
		fmt.Fprintf(&b, " operations=%s", strings.Join(e.Operations, ","))
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}
	return b.String()
}

// Status 外部账本配置与分发账户健康状况
type Status struct {
	Configured          bool             `json:"configured"`
	DistributionKey     string           `json:"distribution_key"`
	IssuerKey           string           `json:"issuer_key"`
	AssetCode           string           `json:"asset_code"`
	AssetStatus         string           `json:"asset_status"` // ok / no_balance / error / unknown
	DistributionBalance *decimal.Decimal `json:"distribution_balance"`
	ContractConfigured  bool             `json:"contract_configured"`
	ContractID          *string          `json:"contract_id"`
	HorizonURL          string           `json:"horizon_url"`
	Network             string           `json:"network"`
}

const (
	AssetStatusOK        = "ok"
	AssetStatusNoBalance = "no_balance"
	AssetStatusError     = "error"
	AssetStatusUnknown   = "unknown"
)

// truncateBytes 按字节截断，不拆开多字节字符
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
