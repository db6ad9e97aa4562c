package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/LJTian/WrestlingNews/internal/logging"
)

const (
	listCacheTTL       = 2 * time.Minute
	listGenerationKey  = "wrestlingnews:articles:gen"
	listCachePrefix    = "wrestlingnews:articles:list"
	IngestLockKey      = "wrestlingnews:ingest:lock"
	DefaultIngestLease = 30 * time.Minute
)

// listCacheKey 缓存 key 带上当前代数，写入后自增代数即可让旧缓存全部失效，无需按通配符删除
func (s *Store) listCacheKey(ctx context.Context, q ArticleQuery) string {
	if s.Redis == nil {
		return ""
	}
	gen, err := s.Redis.Get(ctx, listGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return ""
	}
	return fmt.Sprintf("%s:%d:%s", listCachePrefix, gen, q.cacheSuffix())
}

// InvalidateArticleCache 文章或投票变更后调用
func (s *Store) InvalidateArticleCache(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Incr(ctx, listGenerationKey).Err(); err != nil {
		logging.Log.Warnf("bump article cache generation failed: %v", err)
	}
}

// AcquireIngestLock 通过 SETNX 获取跨进程采集锁，避免 cmd/ingest 与服务端定时任务同时运行。
// Redis 未配置或不可用时退化为只依赖进程内锁。
func (s *Store) AcquireIngestLock(ctx context.Context, ttl time.Duration) (release func(), ok bool, err error) {
	noop := func() {}
	if s.Redis == nil {
		return noop, true, nil
	}
	if ttl <= 0 {
		ttl = DefaultIngestLease
	}

	token := uuid.NewString()
	ok, err = s.Redis.SetNX(ctx, IngestLockKey, token, ttl).Result()
	if err != nil {
		logging.Log.Warnf("acquire ingest lock failed, continuing without it: %v", err)
		return noop, true, nil
	}
	if !ok {
		return noop, false, nil
	}

	release = func() {
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		// 只释放自己持有的锁
		if err := releaseScript.Run(rctx, s.Redis, []string{IngestLockKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			logging.Log.Warnf("release ingest lock failed: %v", err)
		}
	}
	return release, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
