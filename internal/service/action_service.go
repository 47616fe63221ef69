package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ecoprado/internal/model"
	"ecoprado/internal/repository"
)

// 行动奖励表，未知类型按 10 计
var rewardTable = map[model.ActionType]int64{
	model.ActionTypeRecycling:              10,
	model.ActionTypeGreenTransport:         15,
	model.ActionTypeWaterSaving:            20,
	model.ActionTypeSustainableAgriculture: 50,
	model.ActionTypeEnvironmentalEducation: 25,
}

const defaultReward int64 = 10

// RewardFor 按行动类型查奖励
func RewardFor(actionType model.ActionType) int64 {
	if amount, ok := rewardTable[actionType]; ok {
		return amount
	}
	return defaultReward
}

// ActionService 行动账本
//
// 只追加：行动创建后唯一允许的修改是补写外部回执。
// 上报的行动一律直接记为 completed，没有审核流程。
type ActionService struct {
	actions repository.ActionRepository
}

func NewActionService(actions repository.ActionRepository) *ActionService {
	return &ActionService{actions: actions}
}

// Record 记录一次上报的行动，奖励按固定表计算
func (s *ActionService) Record(ctx context.Context, accountRef, actionType, description, evidence string) (*model.Action, error) {
	normalized := model.NormalizeActionType(actionType)
	action := &model.Action{
		AccountRef:   accountRef,
		ActionType:   normalized,
		Description:  description,
		Evidence:     evidence,
		RewardAmount: RewardFor(normalized),
		Status:       model.ActionStatusCompleted,
	}
	if err := s.actions.Create(ctx, action); err != nil {
		return nil, fmt.Errorf("记录行动失败: %w", err)
	}
	return action, nil
}

// RecordCalculated 记录一次 CO2 计算器提交，奖励和减排量来自估算结果
func (s *ActionService) RecordCalculated(ctx context.Context, accountRef string, input EstimateRequest, est Estimate, note string) (*model.Action, error) {
	description := fmt.Sprintf("CO2 estimado: %s kg", est.CO2Kg.String())
	if note = strings.TrimSpace(note); note != "" {
		description += " | " + note
	}

	evidence, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("序列化计算参数失败: %w", err)
	}

	co2 := est.CO2Float()
	action := &model.Action{
		AccountRef:   accountRef,
		ActionType:   model.ActionTypeCO2Calculator,
		Description:  description,
		Evidence:     string(evidence),
		RewardAmount: est.Tokens,
		CO2SavedKg:   &co2,
		Status:       model.ActionStatusCompleted,
	}
	if err := s.actions.Create(ctx, action); err != nil {
		return nil, fmt.Errorf("记录行动失败: %w", err)
	}
	return action, nil
}

// ListFor 按上报顺序返回
func (s *ActionService) ListFor(ctx context.Context, accountRef string) ([]*model.Action, error) {
	return s.actions.ListByAccount(ctx, accountRef)
}

func (s *ActionService) Get(ctx context.Context, id int64) (*model.Action, error) {
	return s.actions.GetByID(ctx, id)
}

// AttachReceipts 补写外部回执，只填充尚为空的字段
func (s *ActionService) AttachReceipts(ctx context.Context, actionID int64, receipts model.Receipts) (*model.Action, error) {
	return s.actions.AttachReceipts(ctx, actionID, receipts)
}
