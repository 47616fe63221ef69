package service

import (
	"context"
	"fmt"
	"strings"

	"ecoprado/internal/infrastructure/lock"
	"ecoprado/internal/metrics"
	"ecoprado/internal/model"
	"ecoprado/pkg/logger"

	"go.uber.org/zap"
)

type PurchaseRequest struct {
	PublicKey string `json:"user_public_key" binding:"required"`
	ItemID    int64  `json:"item_id" binding:"required"`
}

type PurchaseResult struct {
	Order      *model.PurchaseOrder `json:"order"`
	Balance    int64                `json:"balance"`
	Settlement Settlement           `json:"settlement"`
}

// Purchase 兑换商城商品
//
// 【关键点】余额检查、建单、扣款在同一把账户锁内完成：
//   - 并发兑换不会读到旧余额，最后一点余额只会被一笔兑换拿到
//   - 先建订单再扣款，扣款时订单一定已经存在
//   - 余额不足时直接拒绝，不产生订单，余额不变
//
// 订单哈希锚定在锁外异步执行，失败不会回滚兑换。
func (s *SettlementService) Purchase(ctx context.Context, req *PurchaseRequest) (*PurchaseResult, error) {
	accountRef := strings.TrimSpace(req.PublicKey)
	if accountRef == "" {
		return nil, newValidationError("user_public_key", "不能为空")
	}
	if req.ItemID <= 0 {
		return nil, newValidationError("item_id", "无效的商品编号")
	}

	if _, err := s.accounts.GetByPublicKey(ctx, accountRef); err != nil {
		return nil, err
	}
	item, err := s.catalog.GetByID(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	order, balance, err := s.debitLocally(ctx, accountRef, item)
	if err != nil {
		return nil, err
	}

	result := &PurchaseResult{Order: order, Balance: balance}

	done := s.goSettle(ctx, func(ctx context.Context) settlementOutcome {
		return s.anchorOrder(ctx, order)
	})

	outcome, finished := s.await(ctx, done)
	if !finished {
		result.Settlement = Settlement{Status: SettlementPending}
		return result, nil
	}

	result.Settlement = outcome.settlement
	if refreshed, err := s.orders.GetByID(ctx, order.ID); err == nil {
		result.Order = refreshed
	}
	if b, err := s.balances.Get(ctx, accountRef); err == nil {
		result.Balance = b
	}
	return result, nil
}

func (s *SettlementService) debitLocally(ctx context.Context, accountRef string, item *model.MarketplaceItem) (*model.PurchaseOrder, int64, error) {
	unlock, err := lock.LockWithTimeout(ctx, s.locker, accountRef, lockWait)
	if err != nil {
		return nil, 0, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	defer unlock()

	current, err := s.balances.Get(ctx, accountRef)
	if err != nil {
		return nil, 0, fmt.Errorf("查询余额失败: %w", err)
	}
	if current < item.Price {
		return nil, 0, &InsufficientFundsError{Balance: current, Price: item.Price}
	}

	order := &model.PurchaseOrder{
		AccountRef: accountRef,
		ItemID:     item.ID,
		ItemName:   item.Name,
		Price:      item.Price,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, 0, fmt.Errorf("创建订单失败: %w", err)
	}

	balance, err := s.balances.Debit(ctx, accountRef, item.Price, fmt.Sprintf("purchase-%d", order.ID))
	if err != nil {
		return nil, 0, fmt.Errorf("扣款失败: %w", err)
	}
	metrics.RecordBalanceChange(model.EntryTypeDebit, -item.Price)

	s.logger.Info("[Purchase] 兑换成功",
		logger.Account(accountRef),
		zap.Int64("order_id", order.ID),
		zap.Int64("item_id", item.ID),
		zap.Int64("price", item.Price),
		zap.Int64("balance", balance))
	return order, balance, nil
}

func (s *SettlementService) anchorOrder(ctx context.Context, order *model.PurchaseOrder) settlementOutcome {
	hash, err := contentHash(order)
	if err != nil {
		s.logger.Error("[Purchase] 计算订单哈希失败", zap.Int64("order_id", order.ID), zap.Error(err))
		return settlementOutcome{settlement: settlementFrom(nil, err)}
	}

	receipt, err := s.gateway.AnchorHash(ctx, fmt.Sprintf("ECO-ORDER-%d", order.ID), hash)
	settlement := settlementFrom(receipt, err)
	if err == nil {
		if _, attachErr := s.orders.AttachAnchor(ctx, order.ID, receipt.TxHash); attachErr != nil {
			s.logger.Error("[Purchase] 补写锚定回执失败", zap.Int64("order_id", order.ID), zap.Error(attachErr))
		}
	}

	metrics.RecordSettlement(workflowPurchase, string(settlement.Status), string(settlement.Code))
	s.events.emit(ctx, model.EventPurchaseAnchored, map[string]interface{}{
		"order_id":       order.ID,
		"account":        order.AccountRef,
		"item_id":        order.ItemID,
		"price":          order.Price,
		"status":         settlement.Status,
		"code":           settlement.Code,
		"anchor_tx_hash": settlement.TxHash,
	})
	return settlementOutcome{settlement: settlement}
}
