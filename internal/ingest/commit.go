package ingest

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/LJTian/WrestlingNews/internal/logging"
	"github.com/LJTian/WrestlingNews/internal/storage"
)

// Committer 写入一批文章，整批成功或整批回滚
type Committer interface {
	SaveArticles(ctx context.Context, items []storage.PendingArticle) ([]storage.Article, error)
}

// CommitPolicy 决定一批待写入文章如何提交，返回实际落库的文章
type CommitPolicy interface {
	Commit(ctx context.Context, c Committer, items []storage.PendingArticle) []storage.Article
}

// TwoPhaseCommit 先整批提交；失败后逐条单独提交，仍失败的丢弃
type TwoPhaseCommit struct{}

func (TwoPhaseCommit) Commit(ctx context.Context, c Committer, items []storage.PendingArticle) []storage.Article {
	if len(items) == 0 {
		return nil
	}

	saved, err := c.SaveArticles(ctx, items)
	if err == nil {
		return saved
	}
	logging.Log.Warnf("batch commit of %d articles failed, retrying one by one: %v", len(items), err)

	saved = make([]storage.Article, 0, len(items))
	for _, it := range items {
		one, err := c.SaveArticles(ctx, []storage.PendingArticle{it})
		if err != nil {
			logging.Log.WithFields(logrus.Fields{"url": it.Article.CanonicalURL}).
				Warnf("drop article after individual commit failed: %v", err)
			continue
		}
		saved = append(saved, one...)
	}
	return saved
}
