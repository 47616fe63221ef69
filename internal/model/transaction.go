package model

import (
	"time"
)

// ============================================================================
// 余额变动类型
// ============================================================================

const (
	EntryTypeCredit    = "CREDIT"    // 奖励入账
	EntryTypeDebit     = "DEBIT"     // 兑换扣款
	EntryTypeReconcile = "RECONCILE" // 按外部账本校准
)

// ============================================================================
// 余额流水
// ============================================================================

// BalanceEntry 本地余额流水
// 记录每一次余额变动，用于核对余额：所有流水的 Amount 之和等于当前余额
//
// 【重要】只追加，不修改，不删除
type BalanceEntry struct {
	AccountRef    string    `json:"account_ref"`
	Amount        int64     `json:"amount"` // 正数入账，负数出账
	Type          string    `json:"type"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	Remark        string    `json:"remark"`
	CreatedAt     time.Time `json:"created_at"`
}
