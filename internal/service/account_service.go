package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecoprado/internal/model"
	"ecoprado/internal/repository"
	"ecoprado/pkg/logger"

	"go.uber.org/zap"
)

const defaultDisplayName = "Usuario Demo"

type RegisterRequest struct {
	PublicKey string `json:"public_key" binding:"required"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// AccountService 账户注册表
type AccountService struct {
	accounts    repository.AccountRepository
	balances    repository.BalanceStore
	actions     repository.ActionRepository
	syncer      *BalanceSyncer
	defaultRole string
	now         func() time.Time
	logger      *zap.Logger
}

func NewAccountService(stores *Stores, syncer *BalanceSyncer, defaultRole string, log *zap.Logger) *AccountService {
	if defaultRole == "" {
		defaultRole = model.DefaultRole
	}
	return &AccountService{
		accounts:    stores.Accounts,
		balances:    stores.Balances,
		actions:     stores.Actions,
		syncer:      syncer,
		defaultRole: defaultRole,
		now:         time.Now,
		logger:      log,
	}
}

// Register 幂等注册：公钥已存在时原样返回，不会重置余额
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*model.Account, bool, error) {
	publicKey := strings.TrimSpace(req.PublicKey)
	if publicKey == "" {
		return nil, false, newValidationError("public_key", "不能为空")
	}

	now := s.now()
	candidate := &model.Account{
		PublicKey: publicKey,
		Name:      firstNonEmpty(req.Name, defaultDisplayName),
		Email:     firstNonEmpty(req.Email, fmt.Sprintf("user%d@ecoprado.com", now.UnixMilli())),
		Role:      firstNonEmpty(req.Role, s.defaultRole),
		CreatedAt: now,
	}

	account, created, err := s.accounts.GetOrCreate(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("注册账户失败: %w", err)
	}
	if !created {
		return account, false, nil
	}

	if err := s.balances.Open(ctx, account.PublicKey); err != nil {
		return nil, false, fmt.Errorf("开户失败: %w", err)
	}

	s.logger.Info("[Account] 新账户注册",
		logger.Account(account.PublicKey),
		zap.Int64("id", account.ID),
		zap.String("role", account.Role))
	return account, true, nil
}

func (s *AccountService) Lookup(ctx context.Context, publicKey string) (*model.Account, error) {
	if strings.TrimSpace(publicKey) == "" {
		return nil, newValidationError("public_key", "不能为空")
	}
	return s.accounts.GetByPublicKey(ctx, publicKey)
}

// Profile 账户资料 + 余额 + 行动数 + 累计减排量
// 余额在返回前会尝试按外部账本校准一次
func (s *AccountService) Profile(ctx context.Context, publicKey string) (*model.Profile, error) {
	account, err := s.Lookup(ctx, publicKey)
	if err != nil {
		return nil, err
	}

	balance, err := s.syncer.sync(ctx, account.PublicKey, true)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("读取余额失败: %w", err)
	}

	actions, err := s.actions.ListByAccount(ctx, account.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("查询行动失败: %w", err)
	}

	var co2 float64
	for _, a := range actions {
		co2 += a.CO2Contribution()
	}

	return &model.Profile{
		Account:      *account,
		Balance:      balance,
		TotalActions: len(actions),
		CO2Saved:     roundTo(co2, 2),
	}, nil
}

func firstNonEmpty(v, fallback string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return fallback
}
