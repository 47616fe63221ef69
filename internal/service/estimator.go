package service

import (
	"math"

	"github.com/shopspring/decimal"
)

// ============================================================================
// CO2 估算
// ============================================================================
//
//   co2    = 出行公里 * 0.21 + 用电度数 * 0.4 + 垃圾公斤 * 1.8
//   tokens = max(1, round(co2 / 2))
//
// 【关键点】舍入规则固定为四舍五入（.5 进位），例如 co2=21 时 10.5 -> 11。
// 使用 decimal 计算，避免 0.21 这类系数的二进制浮点误差影响 .5 边界。
//
// ============================================================================

var (
	transportFactor = decimal.RequireFromString("0.21")
	energyFactor    = decimal.RequireFromString("0.4")
	wasteFactor     = decimal.RequireFromString("1.8")
	kgPerToken      = decimal.NewFromInt(2)
	maxTokens       = decimal.NewFromInt(math.MaxInt64)
)

// EstimateRequest 估算输入
type EstimateRequest struct {
	TransportKm float64 `json:"transport_km"`
	EnergyKwh   float64 `json:"energy_kwh"`
	WasteKg     float64 `json:"waste_kg"`
}

// Estimate 估算结果
type Estimate struct {
	CO2Kg  decimal.Decimal
	Tokens int64
}

// CO2Float 保留两位小数的 CO2 公斤数
func (e Estimate) CO2Float() float64 {
	return e.CO2Kg.InexactFloat64()
}

// EstimateCO2 纯函数，无副作用
func EstimateCO2(req EstimateRequest) (Estimate, error) {
	km, err := nonNegative("transport_km", req.TransportKm)
	if err != nil {
		return Estimate{}, err
	}
	kwh, err := nonNegative("energy_kwh", req.EnergyKwh)
	if err != nil {
		return Estimate{}, err
	}
	waste, err := nonNegative("waste_kg", req.WasteKg)
	if err != nil {
		return Estimate{}, err
	}

	co2 := km.Mul(transportFactor).
		Add(kwh.Mul(energyFactor)).
		Add(waste.Mul(wasteFactor))

	rounded := co2.Div(kgPerToken).Round(0)
	if rounded.GreaterThan(maxTokens) {
		return Estimate{}, newValidationError("", "估算结果过大，超出可发放的代币范围")
	}
	tokens := rounded.IntPart()
	if tokens < 1 {
		tokens = 1
	}

	return Estimate{CO2Kg: co2.Round(2), Tokens: tokens}, nil
}

func nonNegative(field string, v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, newValidationError(field, "必须是有效数字")
	}
	if v < 0 {
		return decimal.Zero, newValidationError(field, "不能为负数")
	}
	return decimal.NewFromFloat(v), nil
}
