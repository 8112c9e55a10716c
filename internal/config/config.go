package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 死信存储与事件分发后端
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"

	DispatchBus   = "bus"
	DispatchAsynq = "asynq"
	DispatchAMQP  = "amqp"
)

// Config 应用配置
type Config struct {
	HTTP       HTTPConfig
	Log        LogConfig
	Task       TaskConfig
	DeadLetter DeadLetterConfig
	Dispatch   DispatchConfig
	Redis      RedisConfig
	AMQP       AMQPConfig
	Postgres   PostgresConfig
	DBPool     DBPoolConfig
	Storage    StorageConfig
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr string `validate:"required"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `validate:"oneof=debug info warn error"`
	Production bool
}

// TaskConfig 任务管理器配置
type TaskConfig struct {
	Workers         int           `validate:"gte=1,lte=256"`
	AwaitMaxTimeout time.Duration `validate:"gt=0"`
	RecordCacheSize int           `validate:"gte=0"`
}

// DeadLetterConfig 死信存储配置
type DeadLetterConfig struct {
	Backend string `validate:"oneof=memory redis postgres"`
}

// DispatchConfig 重投时事件的投递方式
type DispatchConfig struct {
	Backend string `validate:"oneof=bus asynq amqp"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	URL string
}

// AMQPConfig RabbitMQ 配置
type AMQPConfig struct {
	URL string
}

// PostgresConfig PostgreSQL 配置；DSN 为空时任务记录不落库
type PostgresConfig struct {
	DSN            string
	MigrationsAuto bool
}

// DBPoolConfig 数据库连接池配置
type DBPoolConfig struct {
	MaxConns          int32 `validate:"gte=1"`
	MinConns          int32 `validate:"gte=0"`
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// StorageConfig 本地文件路径
type StorageConfig struct {
	IndexPath string
	ExportDir string `validate:"required"`
}

// Load 加载配置：.env（若存在）-> 环境变量 -> 默认值，最后校验
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Production = v.GetBool("LOG_PRODUCTION")

	cfg.Task.Workers = v.GetInt("TASK_WORKERS")
	cfg.Task.AwaitMaxTimeout = v.GetDuration("TASK_AWAIT_MAX_TIMEOUT")
	cfg.Task.RecordCacheSize = v.GetInt("TASK_RECORD_CACHE_SIZE")

	cfg.DeadLetter.Backend = v.GetString("DEADLETTER_BACKEND")
	cfg.Dispatch.Backend = v.GetString("DISPATCH_BACKEND")

	cfg.Redis.URL = v.GetString("REDIS_URL")
	cfg.AMQP.URL = v.GetString("AMQP_URL")

	cfg.Postgres.DSN = v.GetString("POSTGRES_DSN")
	cfg.Postgres.MigrationsAuto = v.GetBool("MIGRATIONS_AUTO")

	// 数据库连接池配置
	cfg.DBPool.MaxConns = int32(v.GetInt("DB_MAX_CONNS"))
	cfg.DBPool.MinConns = int32(v.GetInt("DB_MIN_CONNS"))
	cfg.DBPool.MaxConnLifetime = v.GetDuration("DB_MAX_CONN_LIFETIME")
	cfg.DBPool.MaxConnIdleTime = v.GetDuration("DB_MAX_CONN_IDLE_TIME")
	cfg.DBPool.HealthCheckPeriod = v.GetDuration("DB_HEALTH_CHECK_PERIOD")

	cfg.Storage.IndexPath = v.GetString("INDEX_PATH")
	cfg.Storage.ExportDir = v.GetString("EXPORT_DIR")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":28080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TASK_WORKERS", 4)
	v.SetDefault("TASK_AWAIT_MAX_TIMEOUT", 365*24*time.Hour)
	v.SetDefault("TASK_RECORD_CACHE_SIZE", 1024)
	v.SetDefault("DEADLETTER_BACKEND", BackendMemory)
	v.SetDefault("DISPATCH_BACKEND", DispatchBus)
	v.SetDefault("MIGRATIONS_AUTO", true)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_MAX_CONN_LIFETIME", 30*time.Minute)
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", 5*time.Minute)
	v.SetDefault("DB_HEALTH_CHECK_PERIOD", time.Minute)
	v.SetDefault("EXPORT_DIR", filepath.Join(os.TempDir(), "mailtaskhub-exports"))
}

var validate = validator.New()

// Validate 校验字段约束以及后端之间的依赖
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.DeadLetter.Backend == BackendRedis && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when DEADLETTER_BACKEND=redis")
	}
	if c.DeadLetter.Backend == BackendPostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when DEADLETTER_BACKEND=postgres")
	}
	if c.Dispatch.Backend == DispatchAsynq && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when DISPATCH_BACKEND=asynq")
	}
	if c.Dispatch.Backend == DispatchAMQP && c.AMQP.URL == "" {
		return fmt.Errorf("AMQP_URL is required when DISPATCH_BACKEND=amqp")
	}
	if c.DBPool.MinConns > c.DBPool.MaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBPool.MinConns, c.DBPool.MaxConns)
	}
	return nil
}

// loadDotEnv 依次在当前目录及上两级查找 .env；已存在的环境变量不会被覆盖
func loadDotEnv() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	for _, dir := range []string{wd, filepath.Join(wd, ".."), filepath.Join(wd, "..", "..")} {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return godotenv.Load(path)
		}
	}
	return nil
}
