package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Contract ContractConfig `mapstructure:"contract"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	Mode      string `mapstructure:"mode"` // debug / release
	RateLimit int    `mapstructure:"rate_limit"` // 每个客户端每秒请求数，0 表示不限流
	RateBurst int    `mapstructure:"rate_burst"`
}

// LedgerConfig 外部账本（资产账本）配置
//
// 签名私钥不在本服务内：支付和 manageData 由签名 sidecar 完成，
// 这里只保存账户公钥和两个端点。
type LedgerConfig struct {
	HorizonURL          string `mapstructure:"horizon_url"`
	SignerURL           string `mapstructure:"signer_url"`
	Network             string `mapstructure:"network"`
	AssetCode           string `mapstructure:"asset_code"`
	IssuerPublicKey     string `mapstructure:"issuer_public_key"`
	DistributionAccount string `mapstructure:"distribution_account"`
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`
}

// ContractConfig 合约调用通道配置
type ContractConfig struct {
	ContractID     string `mapstructure:"contract_id"`
	AdminPublicKey string `mapstructure:"admin_public_key"`
}

type MySQLConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// 外部余额快照缓存时间
	SnapshotTTLSeconds int `mapstructure:"snapshot_ttl_seconds"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Settlement string `mapstructure:"settlement"`
}

type BusinessConfig struct {
	// 响应最多等待外部结算的时间，超过则先返回本地结果
	SettleWaitMillis int    `mapstructure:"settle_wait_millis"`
	DefaultRole      string `mapstructure:"default_role"`
	MaxRetryCount    int    `mapstructure:"max_retry_count"`
	MaxAirdropAmount int64  `mapstructure:"max_airdrop_amount"`
	WorkerID         int64  `mapstructure:"worker_id"`
}

func (c *LedgerConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *BusinessConfig) SettleWait() time.Duration {
	if c.SettleWaitMillis <= 0 {
		return 0
	}
	return time.Duration(c.SettleWaitMillis) * time.Millisecond
}

func (c *ServerConfig) IsDebug() bool {
	return c.Mode == "debug"
}

func (c *RedisConfig) SnapshotTTL() time.Duration {
	if c.SnapshotTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SnapshotTTLSeconds) * time.Second
}

// 兼容旧部署的环境变量名，直接绑定到对应配置项
var legacyEnv = map[string]string{
	"server.port":                 "PORT",
	"ledger.horizon_url":          "HORIZON_URL",
	"ledger.issuer_public_key":    "ISSUER_PUBLIC_KEY",
	"ledger.distribution_account": "DISTRIBUTION_PUBLIC_KEY",
	"contract.contract_id":        "CONTRACT_ID",
	"contract.admin_public_key":   "ADMIN_PUBLIC_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("ledger.horizon_url", "https://horizon-testnet.stellar.org")
	v.SetDefault("ledger.network", "TESTNET")
	v.SetDefault("ledger.asset_code", "PRADONSITOS")
	v.SetDefault("ledger.timeout_seconds", 30)
	v.SetDefault("redis.snapshot_ttl_seconds", 30)
	v.SetDefault("kafka.topic.settlement", "ecoprado.settlement")
	v.SetDefault("business.settle_wait_millis", 8000)
	v.SetDefault("business.default_role", "ciudadano")
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.max_airdrop_amount", 1000)
	v.SetDefault("business.worker_id", 1)
}

// LoadConfig 加载配置文件
//
// 读取顺序：.env（可选） -> 配置文件 -> 环境变量覆盖。
// 配置文件不存在时只使用默认值和环境变量。
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return cfg, nil
}
