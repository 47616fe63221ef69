package model

import (
	"time"
)

const DefaultRole = "ciudadano"

// Account 用户账户
// PublicKey 是外部账本地址，也是本地余额和行动记录的关联键，全局唯一
type Account struct {
	ID        int64     `json:"id"`
	PublicKey string    `json:"public_key"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile 账户详情：资料 + 余额 + 行动统计
type Profile struct {
	Account
	Balance      int64   `json:"balance"`
	TotalActions int     `json:"total_actions"`
	CO2Saved     float64 `json:"co2_saved"`
}
