// Package storagetest 为依赖 Store 的测试提供内存 SQLite 数据库
package storagetest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/LJTian/WrestlingNews/internal/storage"
)

// New 每个测试独立的内存库，Redis 为空
func New(t *testing.T) *storage.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s, err := storage.New(db, nil)
	require.NoError(t, err)
	return s
}

// Source 写入一个启用中的来源
func Source(t *testing.T, s *storage.Store, name string, score float64) *storage.Source {
	t.Helper()
	src := &storage.Source{
		Name:        name,
		RSSURL:      "https://" + strings.ToLower(strings.ReplaceAll(name, " ", "")) + ".example/feed",
		AdapterKind: "feed",
		SourceScore: score,
		IsActive:    true,
	}
	require.NoError(t, s.CreateSource(context.Background(), src))
	return src
}
