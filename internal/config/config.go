package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/LJTian/WrestlingNews/internal/logging"
)

const defaultPostgresDSN = "host=localhost user=wrestlingnews password=wrestlingnews dbname=wrestlingnews port=5432 sslmode=disable TimeZone=UTC"

type Config struct {
	AppPort string
	Env     string

	PostgresDSN string
	RedisAddr   string

	IngestCron             string
	IngestFetchConcurrency int
	HTTPTimeout            time.Duration
	ThumbnailTimeout       time.Duration
	ListMaxLimit           int

	// 管理接口的 Basic Auth；未配置时管理接口不做认证（仅限非 prod）
	BasicAuthUser string
	BasicAuthPass string

	LogLevel    string
	SourcesFile string
}

// Load 先尝试加载 .env，再从环境变量读取配置
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Log.Warnf("config: load .env failed: %v", err)
	}

	cfg := &Config{
		AppPort:                getEnv("APP_PORT", "9000"),
		Env:                    getEnv("APP_ENV", "dev"),
		PostgresDSN:            getEnv("POSTGRES_DSN", defaultPostgresDSN),
		RedisAddr:              getEnv("REDIS_ADDR", "localhost:6379"),
		IngestCron:             getEnv("INGEST_CRON", "*/15 * * * *"),
		IngestFetchConcurrency: getInt("INGEST_FETCH_CONCURRENCY", 4),
		HTTPTimeout:            getDuration("HTTP_TIMEOUT", 20*time.Second),
		ThumbnailTimeout:       getDuration("THUMBNAIL_TIMEOUT", 8*time.Second),
		ListMaxLimit:           getInt("LIST_MAX_LIMIT", 100),
		BasicAuthUser:          getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:          getEnv("APP_BASIC_PASS", ""),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		SourcesFile:            getEnv("SOURCES_FILE", ""),
	}

	if cfg.IngestFetchConcurrency <= 0 {
		cfg.IngestFetchConcurrency = 1
	}
	if cfg.ListMaxLimit <= 0 {
		cfg.ListMaxLimit = 100
	}

	logging.Log.Infof("config loaded: env=%s port=%s cron=%s", cfg.Env, cfg.AppPort, cfg.IngestCron)
	return cfg
}

// IsProd 是否为生产环境
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// Validate 生产环境下缺少必须的密钥/连接信息时直接报错，由 main 负责退出
func (c *Config) Validate() error {
	if !c.IsProd() {
		return nil
	}
	if c.BasicAuthUser == "" || c.BasicAuthPass == "" {
		return fmt.Errorf("APP_BASIC_USER and APP_BASIC_PASS must be set in prod")
	}
	if c.PostgresDSN == defaultPostgresDSN {
		return fmt.Errorf("POSTGRES_DSN must be set in prod")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logging.Log.Warnf("config: invalid int %s=%q, using %d", key, v, def)
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		logging.Log.Warnf("config: invalid float %s=%q, using %v", key, v, def)
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		logging.Log.Warnf("config: invalid duration %s=%q, using %s", key, v, def)
	}
	return def
}
