package model

import (
	"time"
)

type ActionType string

const (
	ActionTypeRecycling              ActionType = "recycling"
	ActionTypeGreenTransport         ActionType = "green_transport"
	ActionTypeWaterSaving            ActionType = "water_saving"
	ActionTypeSustainableAgriculture ActionType = "sustainable_agriculture"
	ActionTypeEnvironmentalEducation ActionType = "environmental_education"
	ActionTypeCO2Calculator          ActionType = "co2_calculator"
)

// 前端旧版本使用的西语类型名
var actionTypeAliases = map[string]ActionType{
	"reciclaje":              ActionTypeRecycling,
	"transporte_verde":       ActionTypeGreenTransport,
	"ahorro_agua":            ActionTypeWaterSaving,
	"agricultura_sostenible": ActionTypeSustainableAgriculture,
	"educacion_ambiental":    ActionTypeEnvironmentalEducation,
	"calculadora_co2":        ActionTypeCO2Calculator,
}

// NormalizeActionType 把别名转换为标准类型，未知类型原样返回
func NormalizeActionType(raw string) ActionType {
	if t, ok := actionTypeAliases[raw]; ok {
		return t
	}
	return ActionType(raw)
}

// 原型阶段不做审核，上报即完成
const ActionStatusCompleted = "completed"

// 没有计算器数据的行动按固定值计入减排量
const DefaultActionCO2Kg = 2.5

// Action 环保行动记录
//
// 【重要】只追加，不删除。创建后唯一允许的修改是补写外部回执字段
type Action struct {
	ID             int64      `json:"id"`
	AccountRef     string     `json:"account_ref"`
	ActionType     ActionType `json:"action_type"`
	Description    string     `json:"description"`
	Evidence       string     `json:"evidence"`
	RewardAmount   int64      `json:"reward_amount"`
	CO2SavedKg     *float64   `json:"co2_saved_kg"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExternalTxHash *string    `json:"tx_hash"`
	ContractTxHash *string    `json:"contract_tx_hash"`
	AnchorTxHash   *string    `json:"anchor_tx_hash"`
}

// CO2Contribution 该行动计入的减排量（kg）
func (a *Action) CO2Contribution() float64 {
	if a.CO2SavedKg != nil {
		return *a.CO2SavedKg
	}
	return DefaultActionCO2Kg
}

// Receipts 异步结算完成后补写的回执，nil 表示没有
type Receipts struct {
	ExternalTxHash *string
	ContractTxHash *string
	AnchorTxHash   *string
}
