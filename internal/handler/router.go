package handler

import (
	"ecoprado/internal/config"
	"ecoprado/internal/metrics"
	"ecoprado/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
func SetupRouter(services *service.Services, cfg *config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Server.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware(log))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	h := NewHandler(services, log)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")
	if cfg.Server.RateLimit > 0 {
		api.Use(NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst).Middleware())
	}
	{
		api.GET("/health", h.LedgerHealth)
		api.GET("/issuer", h.Issuer)
		api.GET("/stats", h.Stats)

		// 账户相关
		users := api.Group("/users")
		{
			users.POST("/register", h.Register)
			users.GET("/:publicKey", h.GetProfile)
		}

		// 行动相关
		actions := api.Group("/actions")
		{
			actions.POST("/report", h.ReportAction)
			actions.GET("/:publicKey", h.ListActions)
		}

		// 商城相关
		marketplace := api.Group("/marketplace")
		{
			marketplace.GET("", h.ListItems)
			marketplace.POST("/purchase", h.Purchase)
		}
		api.GET("/purchases/:publicKey", h.ListPurchases)
		api.POST("/airdrop", h.Airdrop)

		// CO2 计算器
		calc := api.Group("/calc")
		{
			calc.POST("/estimate", h.Estimate)
			calc.POST("/submit", h.SubmitCalculation)
		}
	}

	return r
}
