package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/WrestlingNews/internal/collector"
	"github.com/LJTian/WrestlingNews/internal/config"
	"github.com/LJTian/WrestlingNews/internal/credibility"
	"github.com/LJTian/WrestlingNews/internal/storage"
	"github.com/LJTian/WrestlingNews/internal/storage/storagetest"
)

// fakeAdapter 按来源名返回固定条目
type fakeAdapter struct {
	items map[string][]collector.Item
	errs  map[string]error
	calls atomic.Int32
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Fetch(_ context.Context, src collector.SourceRef) ([]collector.Item, error) {
	f.calls.Add(1)
	if err := f.errs[src.Name]; err != nil {
		return nil, err
	}
	return f.items[src.Name], nil
}

type resolverFunc func(kind collector.Kind) (collector.Adapter, error)

func (r resolverFunc) Resolve(kind collector.Kind) (collector.Adapter, error) { return r(kind) }

func only(a collector.Adapter) AdapterResolver {
	return resolverFunc(func(collector.Kind) (collector.Adapter, error) { return a, nil })
}

func newOrchestrator(s *storage.Store, r AdapterResolver, opts Options) *Orchestrator {
	scorer := credibility.NewScorer(config.StaticCredibility(config.DefaultCredibility()))
	return New(s, r, scorer, opts)
}

func item(title, url string) collector.Item {
	return collector.Item{Title: title, URL: url}
}

const threeEntryFeed = `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/"><channel><title>Feed</title>
<item><title>Champion retains at the big show</title><link>https://news.example/1</link>
  <media:content url="https://cdn.example/1.jpg"/></item>
<item><link>https://news.example/2</link><media:content url="https://cdn.example/2.jpg"/></item>
<item><title>Tag team titles change hands</title><link>https://news.example/3</link>
  <media:content url="https://cdn.example/3.jpg"/></item>
</channel></rss>`

func TestIngestFeedSkipsUntitledEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threeEntryFeed)
	}))
	defer srv.Close()

	s := storagetest.New(t)
	ctx := context.Background()
	src := &storage.Source{Name: "Feed", RSSURL: srv.URL, AdapterKind: string(collector.KindFeed), SourceScore: 0.5, IsActive: true}
	require.NoError(t, s.CreateSource(ctx, src))

	o := newOrchestrator(s, collector.NewRegistry(collector.Options{}), Options{})
	n, err := o.Ingest(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	list, err := s.ListArticles(ctx, storage.ArticleQuery{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		// 0 票、来源可信度 0.5：0.3*0.5
		require.InDelta(t, 0.15, a.CredibilityScore, 1e-9)
		require.Equal(t, credibility.TagRumor, a.CredibilityTag)
		require.Equal(t, "Feed", a.SourceName)
		require.True(t, strings.HasPrefix(a.ThumbnailURL, "https://cdn.example/"))
	}
}

func TestIngestDeduplicatesByURLAndFingerprint(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	storagetest.Source(t, s, "Alpha", 0.5)
	storagetest.Source(t, s, "Beta", 0.9)

	fake := &fakeAdapter{items: map[string][]collector.Item{
		"Alpha": {
			item("Big Match Announced For Saturday", "https://alpha.example/1"),
			item("Big Match Announced For Saturday", "https://alpha.example/1"),
		},
		"Beta": {
			// 标题归一化后相同，url 不同
			item("big match announced, for saturday!", "https://beta.example/x"),
			item("Another Story Entirely Different", "https://alpha.example/1"),
			item("A Genuinely New Story From Beta", "https://beta.example/y"),
		},
	}}
	o := newOrchestrator(s, only(fake), Options{FetchConcurrency: 2})

	n, err := o.Ingest(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// 第二轮全部已存在
	n, err = o.Ingest(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	list, err := s.ListArticles(ctx, storage.ArticleQuery{Sort: storage.SortTopAll})
	require.NoError(t, err)
	require.Len(t, list, 2)

	byURL := map[string]storage.ArticleView{}
	for _, a := range list {
		byURL[a.CanonicalURL] = a
	}
	require.Equal(t, "Alpha", byURL["https://alpha.example/1"].SourceName)
	require.Equal(t, "Beta", byURL["https://beta.example/y"].SourceName)
	// 来源可信度 0.9：0.3*0.9
	require.InDelta(t, 0.27, byURL["https://beta.example/y"].CredibilityScore, 1e-9)
}

func TestIngestIsolatesFailingSource(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	storagetest.Source(t, s, "Broken", 0.5)
	storagetest.Source(t, s, "Healthy", 0.5)

	fake := &fakeAdapter{
		items: map[string][]collector.Item{"Healthy": {item("Healthy source headline", "https://h.example/1")}},
		errs:  map[string]error{"Broken": errors.New("connection reset")},
	}
	o := newOrchestrator(s, only(fake), Options{FetchConcurrency: 4})

	n, err := o.Ingest(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestIngestUnsupportedKindSkipsSource(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	require.NoError(t, s.CreateSource(ctx, &storage.Source{Name: "Odd", BaseURL: "https://odd.example", AdapterKind: "html:odd", SourceScore: 0.5, IsActive: true}))

	o := newOrchestrator(s, collector.NewRegistry(collector.Options{}), Options{})
	n, err := o.Ingest(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestIngestFiltersBySourceID(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	storagetest.Source(t, s, "Alpha", 0.5)
	beta := storagetest.Source(t, s, "Beta", 0.5)

	fake := &fakeAdapter{items: map[string][]collector.Item{
		"Alpha": {item("Alpha only headline here", "https://a.example/1")},
		"Beta":  {item("Beta only headline here", "https://b.example/1")},
	}}
	o := newOrchestrator(s, only(fake), Options{})

	n, err := o.Ingest(ctx, beta.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.EqualValues(t, 1, fake.calls.Load())

	exists, err := s.URLExists(ctx, "https://a.example/1")
	require.NoError(t, err)
	require.False(t, exists)
}

type countingPolicy struct {
	calls int
	inner CommitPolicy
}

func (p *countingPolicy) Commit(ctx context.Context, c Committer, items []storage.PendingArticle) []storage.Article {
	p.calls++
	return p.inner.Commit(ctx, c, items)
}

func TestIngestWithNothingNewDoesNotCommit(t *testing.T) {
	s := storagetest.New(t)
	storagetest.Source(t, s, "Alpha", 0.5)

	policy := &countingPolicy{inner: TwoPhaseCommit{}}
	fake := &fakeAdapter{items: map[string][]collector.Item{"Alpha": {item("", "https://a.example/untitled")}}}
	o := newOrchestrator(s, only(fake), Options{Commit: policy})

	n, err := o.Ingest(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Zero(t, policy.calls)
}

func TestIngestStopsWhenCancelled(t *testing.T) {
	s := storagetest.New(t)
	storagetest.Source(t, s, "Alpha", 0.5)
	fake := &fakeAdapter{items: map[string][]collector.Item{"Alpha": {item("Alpha only headline here", "https://a.example/1")}}}
	o := newOrchestrator(s, only(fake), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := o.Ingest(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, n)
}

// cancellingAdapter 在抓取过程中取消外部 ctx，并记录抓取时自身 ctx 的状态
type cancellingAdapter struct {
	cancel  context.CancelFunc
	fetched []string
	ctxErrs []error
}

func (a *cancellingAdapter) Name() string { return "cancelling" }

func (a *cancellingAdapter) Fetch(ctx context.Context, src collector.SourceRef) ([]collector.Item, error) {
	a.fetched = append(a.fetched, src.Name)
	a.cancel()
	a.ctxErrs = append(a.ctxErrs, ctx.Err())
	return []collector.Item{item(src.Name+" headline for the night", "https://a.example/"+src.Name)}, nil
}

func TestIngestCancelDoesNotAbortInFlightFetch(t *testing.T) {
	s := storagetest.New(t)
	storagetest.Source(t, s, "Alpha", 0.5)
	storagetest.Source(t, s, "Beta", 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &cancellingAdapter{cancel: cancel}
	o := newOrchestrator(s, only(a), Options{FetchConcurrency: 1})

	n, err := o.Ingest(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, n)
	// 进行中的抓取看到的 ctx 未被取消，之后的来源不再开始抓取
	require.Equal(t, []string{"Alpha"}, a.fetched)
	require.Equal(t, []error{nil}, a.ctxErrs)
}

// flakyCommitter 批量提交总是失败，指定 url 单条提交也失败
type flakyCommitter struct {
	failURL string
	batches int
}

func (f *flakyCommitter) SaveArticles(_ context.Context, items []storage.PendingArticle) ([]storage.Article, error) {
	f.batches++
	if len(items) > 1 {
		return nil, errors.New("deadlock detected")
	}
	if items[0].Article.CanonicalURL == f.failURL {
		return nil, errors.New("constraint violation")
	}
	return []storage.Article{items[0].Article}, nil
}

func TestTwoPhaseCommitFallsBackToSingleArticles(t *testing.T) {
	items := []storage.PendingArticle{
		{Article: storage.Article{CanonicalURL: "https://x.example/1"}},
		{Article: storage.Article{CanonicalURL: "https://x.example/2"}},
		{Article: storage.Article{CanonicalURL: "https://x.example/3"}},
	}
	c := &flakyCommitter{failURL: "https://x.example/2"}

	saved := TwoPhaseCommit{}.Commit(context.Background(), c, items)
	require.Len(t, saved, 2)
	require.Equal(t, "https://x.example/1", saved[0].CanonicalURL)
	require.Equal(t, "https://x.example/3", saved[1].CanonicalURL)
	require.Equal(t, 4, c.batches)
}

func TestTwoPhaseCommitBatchSuccess(t *testing.T) {
	c := &flakyCommitter{}
	saved := TwoPhaseCommit{}.Commit(context.Background(), c, []storage.PendingArticle{
		{Article: storage.Article{CanonicalURL: "https://x.example/1"}},
	})
	require.Len(t, saved, 1)
	require.Equal(t, 1, c.batches)

	require.Empty(t, TwoPhaseCommit{}.Commit(context.Background(), c, nil))
	require.Equal(t, 1, c.batches)
}

func TestCreateArticle(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	alpha := storagetest.Source(t, s, "Alpha", 0.4)
	beta := storagetest.Source(t, s, "Beta", 0.8)
	o := newOrchestrator(s, only(&fakeAdapter{}), Options{})

	in := ManualArticle{
		Title:        "Hall of Fame class revealed",
		CanonicalURL: "https://a.example/hof",
		Sources:      []ManualSource{{SourceID: alpha.ID}, {SourceID: beta.ID, URL: "https://b.example/hof"}},
	}
	a, created, err := o.CreateArticle(ctx, in)
	require.NoError(t, err)
	require.True(t, created)
	// 平均可信度 0.6：0.3*0.6
	require.InDelta(t, 0.18, a.CredibilityScore, 1e-9)

	trusts, err := s.SourceTrusts(ctx, a.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []float64{0.4, 0.8}, trusts)

	again, created, err := o.CreateArticle(ctx, in)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, a.ID, again.ID)
}

func TestCreateArticleRejectsUnknownSourceWithoutWriting(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	alpha := storagetest.Source(t, s, "Alpha", 0.5)
	o := newOrchestrator(s, only(&fakeAdapter{}), Options{})

	_, _, err := o.CreateArticle(ctx, ManualArticle{
		Title:        "Hall of Fame class revealed",
		CanonicalURL: "https://a.example/hof",
		Sources:      []ManualSource{{SourceID: alpha.ID}, {SourceID: 9999}},
	})
	require.ErrorIs(t, err, storage.ErrSourceNotFound)

	exists, err := s.URLExists(ctx, "https://a.example/hof")
	require.NoError(t, err)
	require.False(t, exists)

	_, _, err = o.CreateArticle(ctx, ManualArticle{CanonicalURL: "https://a.example/x"})
	require.ErrorIs(t, err, ErrInvalidArticle)
}

func TestSeedSources(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	seed := &config.SeedFile{
		Sources: []config.SeedSource{
			{Name: "Torch", RSSURL: "https://torch.example/feed", SourceScore: 0.6},
			{Name: "WWE", BaseURL: "https://www.wwe.com/news", SourceScore: 0.5},
			{Name: "Mystery", BaseURL: "https://mystery.example"},
			{Name: "  "},
		},
		Disabled: []string{"WWE"},
	}

	n, err := SeedSources(ctx, s, seed)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// 再次执行不会产生重复来源
	n, err = SeedSources(ctx, s, seed)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	all, err := s.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	active, err := s.ListActiveSources(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "Torch", active[0].Name)
	require.Equal(t, string(collector.KindFeed), active[0].AdapterKind)
	require.Equal(t, 0.6, active[0].SourceScore)
}
