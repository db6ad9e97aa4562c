package ingest

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/LJTian/WrestlingNews/internal/collector"
	"github.com/LJTian/WrestlingNews/internal/credibility"
	"github.com/LJTian/WrestlingNews/internal/processor"
	"github.com/LJTian/WrestlingNews/internal/storage"
)

var ErrInvalidArticle = errors.New("invalid article")

// ManualSource 手工录入文章时声明的佐证来源
type ManualSource struct {
	SourceID uint
	URL      string
}

type ManualArticle struct {
	Title        string
	CanonicalURL string
	Snippet      string
	ThumbnailURL string
	PublishedAt  *time.Time
	Sources      []ManualSource
}

// CreateArticle 手工录入一篇文章。url 或指纹已存在时返回已有文章且 created 为 false；
// 任一来源不存在时不写入任何数据。
func (o *Orchestrator) CreateArticle(ctx context.Context, in ManualArticle) (article *storage.Article, created bool, err error) {
	p, err := processor.Prepare(collector.Item{
		Title:        in.Title,
		URL:          in.CanonicalURL,
		Snippet:      in.Snippet,
		ThumbnailURL: in.ThumbnailURL,
		PublishedAt:  in.PublishedAt,
	})
	if err != nil {
		return nil, false, errors.Wrapf(ErrInvalidArticle, "%v", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	trusts := make([]float64, 0, len(in.Sources))
	links := make([]storage.ArticleSource, 0, len(in.Sources))
	for _, s := range in.Sources {
		src, err := o.store.GetSource(ctx, s.SourceID)
		if err != nil {
			return nil, false, err
		}
		url := s.URL
		if url == "" {
			url = p.URL
		}
		trusts = append(trusts, src.SourceScore)
		links = append(links, storage.ArticleSource{SourceID: src.ID, URL: url})
	}

	existing, err := o.store.FindDuplicate(ctx, p.URL, p.Fingerprint)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrArticleNotFound) {
		return nil, false, err
	}

	result := o.scorer.Score(0, 0, credibility.AverageTrust(trusts))
	saved, err := o.store.SaveArticles(ctx, []storage.PendingArticle{{
		Article: storage.Article{
			Title:            p.Title,
			CanonicalURL:     p.URL,
			ContentSnippet:   p.Snippet,
			ThumbnailURL:     p.ThumbnailURL,
			PublishedAt:      p.PublishedAt,
			DedupFingerprint: p.Fingerprint,
			CredibilityScore: result.Score,
			CredibilityTag:   result.Tag,
		},
		Links: links,
	}})
	if err != nil {
		return nil, false, err
	}
	o.store.InvalidateArticleCache(ctx)
	return &saved[0], true, nil
}
