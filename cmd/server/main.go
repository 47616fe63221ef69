package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecoprado/internal/config"
	"ecoprado/internal/handler"
	"ecoprado/internal/infrastructure/cache"
	"ecoprado/internal/infrastructure/database"
	"ecoprado/internal/infrastructure/ledger"
	"ecoprado/internal/infrastructure/mq"
	"ecoprado/internal/job"
	"ecoprado/internal/repository"
	"ecoprado/internal/service"
	"ecoprado/pkg/idgen"
	"ecoprado/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	zlog, err := logger.New(cfg.Server.IsDebug())
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// 初始化 ID 生成器
	if err := idgen.Init(cfg.Business.WorkerID); err != nil {
		zlog.Fatal("初始化 ID 生成器失败", zap.Error(err))
	}

	stores := service.NewMemoryStores()

	// 发件箱：配置了 MySQL 时持久化，否则在启用 Kafka 时使用内存发件箱
	if cfg.MySQL.Enabled {
		db, err := database.InitMySQL(&cfg.MySQL)
		if err != nil {
			zlog.Fatal("初始化 MySQL 失败", zap.Error(err))
		}
		stores.Outbox = repository.NewGormOutboxRepository(db)
	} else if cfg.Kafka.Enabled {
		stores.Outbox = repository.NewMemoryOutboxRepository()
	}

	// 外部余额快照缓存：Redis 不可用时退回进程内缓存
	snapshots := cache.NewMemorySnapshotCache(cfg.Redis.SnapshotTTL())
	if cfg.Redis.Enabled {
		rdb, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			zlog.Warn("Redis 不可用，使用进程内快照缓存", zap.Error(err))
		} else {
			defer rdb.Close()
			snapshots = cache.NewRedisSnapshotCache(rdb, cfg.Redis.SnapshotTTL())
		}
	}

	gateway := ledger.NewFromConfig(cfg, zlog)
	if !gateway.Configured() {
		zlog.Warn("外部账本未配置，奖励和兑换只在本地结算")
	}

	services := service.NewServices(stores, gateway, snapshots, service.OptionsFromConfig(cfg), zlog)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	var publisher mq.Publisher
	if cfg.Kafka.Enabled && stores.Outbox != nil {
		publisher, err = mq.NewKafkaPublisher(&cfg.Kafka)
		if err != nil {
			zlog.Fatal("初始化 Kafka 失败", zap.Error(err))
		}
		outboxSender := job.NewOutboxSender(stores.Outbox, publisher, cfg.Business.MaxRetryCount, zlog)
		go outboxSender.Start(ctx)
	}

	// 设置路由
	router := handler.SetupRouter(services, cfg, zlog)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		zlog.Info("服务启动", zap.Int("port", cfg.Server.Port), zap.Bool("ledger_configured", gateway.Configured()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("正在关闭服务...")

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("服务关闭异常", zap.Error(err))
	}

	// 等待进行中的外部结算写回结果
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.Ledger.Timeout())
	defer waitCancel()
	if err := services.Settlement.Wait(waitCtx); err != nil {
		zlog.Warn("仍有外部结算未完成", zap.Error(err))
	}

	// 取消上下文，停止后台任务
	cancel()

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			zlog.Error("关闭 Kafka 生产者失败", zap.Error(err))
		}
	}

	zlog.Info("服务已关闭")
}
