package storage

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/WrestlingNews/internal/logging"
)

var (
	ErrSourceNotFound  = errors.New("source not found")
	ErrDuplicateSource = errors.New("source already exists")
	ErrArticleNotFound = errors.New("article not found")
)

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStore 连接 PostgreSQL 与 Redis；Redis 不可用时仅告警，缓存与分布式锁随之失效
func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{NowFunc: nowUTC})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logging.Log.Warnf("redis ping failed: %v", err)
		}
	}

	return New(db, rdb)
}

// New 基于已有连接构造 Store 并执行表结构迁移，测试中传入 SQLite 连接
func New(db *gorm.DB, rdb *redis.Client) (*Store, error) {
	if err := db.AutoMigrate(&Source{}, &Article{}, &ArticleSource{}, &Vote{}); err != nil {
		return nil, errors.Wrap(err, "auto migrate")
	}
	return &Store{DB: db, Redis: rdb}, nil
}

// WithTx 返回绑定到事务的 Store，共享同一个 Redis 客户端
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{DB: tx, Redis: s.Redis}
}

// Transaction 在一个数据库事务中执行 fn，fn 返回错误时回滚
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.WithTx(tx))
	})
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度。
// 这是对上游 Processor 的双保险，防止外部服务返回异常长文本导致入库失败。
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
