package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Log         LogConfig `mapstructure:"log"`
	Database    DatabaseConfig
	JWT         JWTConfig
	Storage     StorageConfig
	Tracing     TracingConfig `mapstructure:"tracing"`
	Judge       JudgeConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig    `mapstructure:"rabbitmq"`
	Progression ProgressionConfig `mapstructure:"progression"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

// LogConfig 日志级别为空时按 server.mode 决定，file 为空时只输出到控制台
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	// sqlite 驱动使用的文件路径
	Path string
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ServiceName       string `mapstructure:"service_name"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

// JudgeConfig 外部判题服务
type JudgeConfig struct {
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	Timeout        time.Duration `mapstructure:"-"`
	// 连续失败多少次后熔断
	FailureThreshold int `mapstructure:"failure_threshold"`
	// 熔断后多久进入半开状态
	OpenSeconds int `mapstructure:"open_seconds"`
}

type RedisConfig struct {
	Host               string
	Port               int
	Password           string
	DB                 int
	PoolSize           int `mapstructure:"pool_size"`
	MinIdleConns       int `mapstructure:"min_idle_conns"`
	DialTimeoutSeconds int `mapstructure:"dial_timeout_seconds"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// ProgressionConfig 可热更新的进度相关参数
type ProgressionConfig struct {
	Timezone string `mapstructure:"timezone"`
	// 每日连续天数修复任务的执行时刻（0-23）
	SweepHour int `mapstructure:"sweep_hour"`
	// 判题耗时不超过该值时给予时间奖励，0 表示关闭
	TimeBonusMS int `mapstructure:"time_bonus_ms"`
	// 推荐结果缓存秒数
	RecommendationCacheTTL int `mapstructure:"recommendation_cache_ttl"`
	SweepBatchSize         int `mapstructure:"sweep_batch_size"`
}

// Location 解析配置的时区，失败时退回本地时区
func (p ProgressionConfig) Location() *time.Location {
	if p.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (p ProgressionConfig) CacheTTL() time.Duration {
	return time.Duration(p.RecommendationCacheTTL) * time.Second
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.file", "logs/app.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 5)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("redis.pool_size", 50)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.dial_timeout_seconds", 5)
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.charset", "utf8mb4")
	viper.SetDefault("database.parsetime", true)
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "uploads")
	viper.SetDefault("tracing.service_name", "algo-learn")
	viper.SetDefault("judge.timeout_seconds", 10)
	viper.SetDefault("judge.failure_threshold", 5)
	viper.SetDefault("judge.open_seconds", 30)
	viper.SetDefault("rabbitmq.exchange", "progression.events")
	viper.SetDefault("progression.timezone", "Local")
	viper.SetDefault("progression.sweep_hour", 0)
	viper.SetDefault("progression.time_bonus_ms", 0)
	viper.SetDefault("progression.recommendation_cache_ttl", 300)
	viper.SetDefault("progression.sweep_batch_size", 200)
	viper.SetDefault("rate_limit.max_requests", 600)
	viper.SetDefault("rate_limit.window_minutes", 1)
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("ALGO_LEARN")
	viper.AutomaticEnv()
	setDefaults()

	// Database
	viper.BindEnv("database.driver", "DATABASE_DRIVER")
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")
	viper.BindEnv("log.level", "LOG_LEVEL")

	// Storage
	viper.BindEnv("storage.type", "STORAGE_TYPE")
	viper.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	viper.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	viper.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	viper.BindEnv("storage.minio_bucket", "MINIO_BUCKET")
	viper.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	viper.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	viper.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	viper.BindEnv("storage.oss_bucket", "OSS_BUCKET")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Judge
	viper.BindEnv("judge.url", "JUDGE_URL")
	viper.BindEnv("judge.api_key", "JUDGE_API_KEY")

	// RabbitMQ
	viper.BindEnv("rabbitmq.url", "RABBITMQ_URL")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func (cfg *Config) normalize() error {
	// 生产环境校验 JWT Secret 强度
	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	if cfg.Progression.SweepHour < 0 || cfg.Progression.SweepHour > 23 {
		return fmt.Errorf("progression.sweep_hour must be within 0-23, got %d", cfg.Progression.SweepHour)
	}
	if cfg.Progression.Timezone != "" && cfg.Progression.Timezone != "Local" {
		if _, err := time.LoadLocation(cfg.Progression.Timezone); err != nil {
			return fmt.Errorf("invalid progression.timezone %q: %w", cfg.Progression.Timezone, err)
		}
	}
	if cfg.Progression.SweepBatchSize <= 0 {
		cfg.Progression.SweepBatchSize = 200
	}

	if cfg.Judge.TimeoutSeconds <= 0 {
		cfg.Judge.TimeoutSeconds = 10
	}
	cfg.Judge.Timeout = time.Duration(cfg.Judge.TimeoutSeconds) * time.Second

	if cfg.Redis.PoolSize <= 0 {
		cfg.Redis.PoolSize = 50
	}
	if cfg.Redis.DialTimeoutSeconds <= 0 {
		cfg.Redis.DialTimeoutSeconds = 5
	}

	if cfg.RateLimit.MaxRequests <= 0 {
		cfg.RateLimit.MaxRequests = 600
	}
	if cfg.RateLimit.WindowMinutes <= 0 {
		cfg.RateLimit.WindowMinutes = 1
	}
	return nil
}
