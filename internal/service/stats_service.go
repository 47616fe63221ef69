package service

import (
	"context"
	"fmt"

	"ecoprado/internal/repository"

	"github.com/shopspring/decimal"
)

type Stats struct {
	TotalUsers   int     `json:"total_users"`
	TotalActions int     `json:"total_actions"`
	TotalTokens  int64   `json:"total_tokens"`
	CO2Avoided   float64 `json:"co2_avoided"`
}

type StatsService struct {
	accounts repository.AccountRepository
	actions  repository.ActionRepository
}

func NewStatsService(stores *Stores) *StatsService {
	return &StatsService{accounts: stores.Accounts, actions: stores.Actions}
}

// Summary 全站统计，空投不计入（没有行动记录）
func (s *StatsService) Summary(ctx context.Context) (*Stats, error) {
	users, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计用户失败: %w", err)
	}
	actions, err := s.actions.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计行动失败: %w", err)
	}

	stats := &Stats{TotalUsers: users, TotalActions: len(actions)}
	co2 := decimal.Zero
	for _, a := range actions {
		stats.TotalTokens += a.RewardAmount
		co2 = co2.Add(decimal.NewFromFloat(a.CO2Contribution()))
	}
	stats.CO2Avoided = co2.Round(1).InexactFloat64()
	return stats, nil
}

func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
