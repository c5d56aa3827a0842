// Package config 提供 TOML 配置加载、环境变量覆盖与校验
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/wyfcoding/pathpricing/pkg/logger"
)

// Config 服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Logger    logger.Config   `mapstructure:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Engine    EngineConfig    `mapstructure:"engine"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒），需覆盖一次百万路径的定价
	WriteTimeout int `mapstructure:"write_timeout"`
}

// Addr 监听地址
func (c HTTPConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	Host                 string `mapstructure:"host"`
	Port                 int    `mapstructure:"port"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// Addr 监听地址
func (c GRPCConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int  `mapstructure:"conn_max_lifetime"`
	LogEnabled      bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
	// 启动时自动迁移表结构
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout"`
	// 读写超时（秒）
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	// 最新运行结果缓存时间（秒）
	RunTTL int `mapstructure:"run_ttl"`
}

// Addr 连接地址
func (c RedisConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	// 定价事件主题
	Topic string `mapstructure:"topic"`
	// outbox 转发间隔（毫秒）
	RelayInterval int `mapstructure:"relay_interval"`
	// 每次转发的最大条数
	RelayBatch int `mapstructure:"relay_batch"`
}

// Enabled 配置了 broker 才启用 outbox 转发
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// RateLimitConfig 定价接口限流配置
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	QPS     int  `mapstructure:"qps"`
	Burst   int  `mapstructure:"burst"`
}

// EngineConfig 定价引擎默认参数，请求未指定时使用
type EngineConfig struct {
	NumSims   int    `mapstructure:"num_sims"`
	MaxSims   int    `mapstructure:"max_sims"`
	Device    int    `mapstructure:"device"`
	Workers   int    `mapstructure:"workers"`
	BlockSize int    `mapstructure:"block_size"`
	Seed      uint64 `mapstructure:"seed"`
	// single 或 double
	Precision string `mapstructure:"precision"`
	// FAIL 或 EXCLUDE
	NumericPolicy string  `mapstructure:"numeric_policy"`
	Tolerance     float64 `mapstructure:"tolerance"`
	Confidence    float64 `mapstructure:"confidence"`
	// 是否同时运行单线程参考策略
	RunReference bool `mapstructure:"run_reference"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return unmarshal(v)
}

// LoadWithDefaults 配置文件不存在时只使用默认值与环境变量
func LoadWithDefaults(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	_ = v.ReadInConfig()
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	// APP_ENGINE_NUM_SIMS 覆盖 engine.num_sims
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
	}
	if c.Engine.NumSims <= 0 || c.Engine.BlockSize <= 0 {
		return fmt.Errorf("engine num_sims and block_size must be positive")
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine workers must not be negative, 0 selects the device default")
	}
	if c.Engine.MaxSims < c.Engine.NumSims {
		return fmt.Errorf("engine max_sims %d below num_sims %d", c.Engine.MaxSims, c.Engine.NumSims)
	}
	if c.Engine.Confidence <= 0 || c.Engine.Confidence >= 1 {
		return fmt.Errorf("engine confidence must be in (0, 1), got %v", c.Engine.Confidence)
	}
	if c.RateLimit.Enabled && c.RateLimit.QPS <= 0 {
		return fmt.Errorf("ratelimit qps must be positive when enabled")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "pricing")
	v.SetDefault("version", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 120)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 100)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("redis.run_ttl", 3600)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "pricing.path-options")
	v.SetDefault("kafka.relay_interval", 1000)
	v.SetDefault("kafka.relay_batch", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/pricing.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.qps", 10)
	v.SetDefault("ratelimit.burst", 20)

	v.SetDefault("engine.num_sims", 1000000)
	v.SetDefault("engine.max_sims", 20000000)
	v.SetDefault("engine.device", 0)
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.block_size", 8192)
	v.SetDefault("engine.seed", 1)
	v.SetDefault("engine.precision", "double")
	v.SetDefault("engine.numeric_policy", "FAIL")
	v.SetDefault("engine.tolerance", 0.1)
	v.SetDefault("engine.confidence", 0.99)
	v.SetDefault("engine.run_reference", true)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
