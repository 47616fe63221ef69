package handler

import (
	"errors"

	"ecoprado/internal/infrastructure/lock"
	"ecoprado/internal/repository"
	"ecoprado/internal/service"
	"ecoprado/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	services *service.Services
	logger   *zap.Logger
}

// NewHandler 创建处理器实例
func NewHandler(services *service.Services, log *zap.Logger) *Handler {
	return &Handler{services: services, logger: log}
}

// ============================================================
// 账本状态
// ============================================================

// LedgerHealth 外部账本配置和分发账户状态
// GET /api/v1/health
func (h *Handler) LedgerHealth(c *gin.Context) {
	response.Success(c, h.services.Gateway.Status(c.Request.Context()))
}

// Issuer 发行方公钥，未配置时返回 null
// GET /api/v1/issuer
func (h *Handler) Issuer(c *gin.Context) {
	var issuer *string
	if key := h.services.Gateway.IssuerKey(); key != "" {
		issuer = &key
	}
	response.Success(c, gin.H{
		"issuer":     issuer,
		"asset_code": h.services.Gateway.AssetCode(),
	})
}

// ============================================================
// 账户相关接口
// ============================================================

// Register 注册账户，公钥已存在时原样返回
// POST /api/v1/users/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, created, err := h.services.Accounts.Register(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	if created {
		response.Created(c, "注册成功", gin.H{"user": account, "created": true})
		return
	}
	response.Success(c, gin.H{"user": account, "created": false, "message": "账户已存在"})
}

// GetProfile 账户详情（资料 + 余额 + 行动统计）
// GET /api/v1/users/:publicKey
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.services.Accounts.Profile(c.Request.Context(), c.Param("publicKey"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, profile)
}

// ============================================================
// 行动相关接口
// ============================================================

// ReportAction 上报环保行动并发放奖励
// POST /api/v1/actions/report
//
// 【关键点】本地入账后才尝试外部支付：
// 1. 外部账本失败不影响本次请求，失败原因放在 settlement 里
// 2. 外部结果超过等待时间才返回时，settlement.status 为 pending
func (h *Handler) ReportAction(c *gin.Context) {
	var req service.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.services.Settlement.ReportAction(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ListActions 查询账户的行动记录
// GET /api/v1/actions/:publicKey
func (h *Handler) ListActions(c *gin.Context) {
	actions, err := h.services.Actions.ListFor(c.Request.Context(), c.Param("publicKey"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, actions)
}

// ============================================================
// 商城相关接口
// ============================================================

// ListItems 商品列表
// GET /api/v1/marketplace
func (h *Handler) ListItems(c *gin.Context) {
	items, err := h.services.Marketplace.ListItems(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, items)
}

// Purchase 兑换商品
// POST /api/v1/marketplace/purchase
func (h *Handler) Purchase(c *gin.Context) {
	var req service.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.services.Settlement.Purchase(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ListPurchases 查询账户的兑换记录
// GET /api/v1/purchases/:publicKey
func (h *Handler) ListPurchases(c *gin.Context) {
	orders, err := h.services.Marketplace.ListPurchases(c.Request.Context(), c.Param("publicKey"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, orders)
}

// Airdrop 空投奖励
// POST /api/v1/airdrop
func (h *Handler) Airdrop(c *gin.Context) {
	var req service.AirdropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.services.Settlement.Airdrop(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// CO2 计算器
// ============================================================

// Estimate 估算预览，不产生任何记录
// POST /api/v1/calc/estimate
func (h *Handler) Estimate(c *gin.Context) {
	var req service.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	est, err := service.EstimateCO2(req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"co2_saved_kg":     est.CO2Float(),
		"suggested_tokens": est.Tokens,
	})
}

// SubmitCalculation 估算并发放奖励，同时锚定行动哈希
// POST /api/v1/calc/submit
func (h *Handler) SubmitCalculation(c *gin.Context) {
	var req service.CalculatorSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.services.Settlement.SubmitCalculation(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// Stats 全局统计
// GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.services.Stats.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, stats)
}

// fail 把业务错误映射为响应码
func (h *Handler) fail(c *gin.Context, err error) {
	var validation *service.ValidationError
	var insufficient *service.InsufficientFundsError

	switch {
	case errors.As(err, &validation):
		response.ParamError(c, validation.Error())
	case errors.As(err, &insufficient):
		response.ErrorWithData(c, response.CodeBalanceNotEnough, insufficient.Error(), gin.H{
			"balance": insufficient.Balance,
			"price":   insufficient.Price,
		})
	case errors.Is(err, repository.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeBalanceNotEnough, "余额不足")
	case errors.Is(err, repository.ErrBalanceOverflow):
		response.ParamError(c, "入账金额过大，余额将超出上限")
	case errors.Is(err, repository.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, "账户不存在，请先注册")
	case errors.Is(err, repository.ErrItemNotFound):
		response.BusinessError(c, response.CodeItemNotFound, "商品不存在")
	case errors.Is(err, repository.ErrActionNotFound), errors.Is(err, repository.ErrOrderNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, lock.ErrLockFailed):
		h.logger.Warn("[Handler] 获取账户锁超时", zap.String("path", c.FullPath()), zap.Error(err))
		response.ServerError(c, "系统繁忙，请稍后重试")
	default:
		h.logger.Error("[Handler] 请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
		response.ServerError(c, "服务器内部错误")
	}
}
