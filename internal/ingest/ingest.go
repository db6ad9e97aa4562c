package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/LJTian/WrestlingNews/internal/collector"
	"github.com/LJTian/WrestlingNews/internal/credibility"
	"github.com/LJTian/WrestlingNews/internal/logging"
	"github.com/LJTian/WrestlingNews/internal/processor"
	"github.com/LJTian/WrestlingNews/internal/storage"
)

// AdapterResolver 按 adapter_kind 返回采集器，collector.Registry 即为实现
type AdapterResolver interface {
	Resolve(kind collector.Kind) (collector.Adapter, error)
}

type Options struct {
	// FetchConcurrency 同时抓取的来源数，处理顺序仍按来源 id
	FetchConcurrency int
	Commit           CommitPolicy
}

// Orchestrator 一次采集：抓取 -> 清洗 -> 去重 -> 初始可信度 -> 提交
type Orchestrator struct {
	store    *storage.Store
	adapters AdapterResolver
	scorer   *credibility.Scorer
	commit   CommitPolicy
	fetchN   int

	// 所有去重相关的写入都串行执行
	mu sync.Mutex
}

func New(store *storage.Store, adapters AdapterResolver, scorer *credibility.Scorer, opts Options) *Orchestrator {
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 1
	}
	if opts.Commit == nil {
		opts.Commit = TwoPhaseCommit{}
	}
	return &Orchestrator{
		store:    store,
		adapters: adapters,
		scorer:   scorer,
		commit:   opts.Commit,
		fetchN:   opts.FetchConcurrency,
	}
}

type fetchResult struct {
	items []collector.Item
	err   error
}

// Ingest 对启用中的来源（可按 id 过滤）执行一次采集，返回新入库的文章数。
// ctx 取消后在条目之间停止，已暂存的文章仍会提交。
func (o *Orchestrator) Ingest(ctx context.Context, sourceIDs ...uint) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	sources, err := o.store.ListActiveSources(ctx, sourceIDs...)
	if err != nil {
		return 0, err
	}
	logging.Log.Infof("ingest: %d active sources", len(sources))

	results := o.fetchAll(ctx, sources)

	staged := make([]storage.PendingArticle, 0, 64)
	seenURL := make(map[string]struct{})
	seenFP := make(map[string]struct{})

sourceLoop:
	for i, src := range sources {
		log := logging.Log.WithFields(logrus.Fields{"source": src.Name})
		if results[i].err != nil {
			log.Warnf("fetch failed, skipping source: %v", results[i].err)
			continue
		}
		for _, item := range results[i].items {
			if ctx.Err() != nil {
				log.Info("ingest cancelled, committing staged articles")
				break sourceLoop
			}
			p, ok := o.stage(ctx, log, item, seenURL, seenFP)
			if !ok {
				continue
			}
			result := o.scorer.Score(0, 0, src.SourceScore)
			staged = append(staged, storage.PendingArticle{
				Article: storage.Article{
					Title:            p.Title,
					CanonicalURL:     p.URL,
					ContentSnippet:   p.Snippet,
					ThumbnailURL:     p.ThumbnailURL,
					PublishedAt:      p.PublishedAt,
					DedupFingerprint: p.Fingerprint,
					CredibilityScore: result.Score,
					CredibilityTag:   result.Tag,
					ExtraData:        p.RawData,
				},
				Links: []storage.ArticleSource{{SourceID: src.ID, URL: p.URL}},
			})
		}
	}

	if len(staged) == 0 {
		logging.Log.Infof("ingest: nothing new (took %s)", time.Since(start).Round(time.Millisecond))
		return 0, ctx.Err()
	}

	// 取消后也要完成提交
	commitCtx := context.WithoutCancel(ctx)
	saved := o.commit.Commit(commitCtx, o.store, staged)
	if len(saved) > 0 {
		o.store.InvalidateArticleCache(commitCtx)
	}
	logging.Log.Infof("ingest: inserted %d/%d staged articles (took %s)",
		len(saved), len(staged), time.Since(start).Round(time.Millisecond))
	return len(saved), ctx.Err()
}

// stage 校验并去重一条采集结果；同一轮内先出现的优先
func (o *Orchestrator) stage(ctx context.Context, log *logrus.Entry, item collector.Item, seenURL, seenFP map[string]struct{}) (processor.Prepared, bool) {
	p, err := processor.Prepare(item)
	if err != nil {
		log.WithField("url", item.URL).Debugf("skip item: %v", err)
		return p, false
	}
	if _, ok := seenURL[p.URL]; ok {
		return p, false
	}
	if _, ok := seenFP[p.Fingerprint]; ok {
		return p, false
	}

	exists, err := o.store.URLExists(ctx, p.URL)
	if err != nil || exists {
		if err != nil {
			log.WithField("url", p.URL).Warnf("url dedup check failed: %v", err)
		}
		return p, false
	}
	exists, err = o.store.FingerprintExists(ctx, p.Fingerprint)
	if err != nil || exists {
		if err != nil {
			log.WithField("url", p.URL).Warnf("fingerprint dedup check failed: %v", err)
		}
		return p, false
	}

	seenURL[p.URL] = struct{}{}
	seenFP[p.Fingerprint] = struct{}{}
	return p, true
}

// fetchAll 以有限并发抓取所有来源，结果按来源顺序返回；单个来源失败不影响其他来源。
// ctx 只在开始抓取某个来源前检查，已开始的抓取由适配器自身的超时约束，不会被中途取消。
func (o *Orchestrator) fetchAll(ctx context.Context, sources []storage.Source) []fetchResult {
	results := make([]fetchResult, len(sources))
	fetchCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(o.fetchN)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i].err = ctx.Err()
				return nil
			}
			results[i] = o.fetchOne(fetchCtx, src)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) fetchOne(ctx context.Context, src storage.Source) (res fetchResult) {
	defer func() {
		if r := recover(); r != nil {
			res = fetchResult{err: errors.Errorf("adapter panic: %v", r)}
		}
	}()

	kind := collector.Kind(src.AdapterKind)
	if kind == "" {
		k, err := collector.KindFor(src.RSSURL, src.BaseURL)
		if err != nil {
			return fetchResult{err: err}
		}
		kind = k
	}
	adapter, err := o.adapters.Resolve(kind)
	if err != nil {
		return fetchResult{err: err}
	}

	items, err := adapter.Fetch(ctx, collector.SourceRef{
		ID:      src.ID,
		Name:    src.Name,
		RSSURL:  src.RSSURL,
		BaseURL: src.BaseURL,
		Kind:    kind,
	})
	if err != nil {
		return fetchResult{err: errors.Wrap(err, adapter.Name())}
	}
	return fetchResult{items: items}
}
