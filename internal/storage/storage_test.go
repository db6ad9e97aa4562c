package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LJTian/WrestlingNews/internal/storage"
	"github.com/LJTian/WrestlingNews/internal/storage/storagetest"
)

func pending(title, url, fp string, sourceID uint, published *time.Time) storage.PendingArticle {
	return storage.PendingArticle{
		Article: storage.Article{
			Title:            title,
			CanonicalURL:     url,
			DedupFingerprint: fp,
			PublishedAt:      published,
			CredibilityScore: 0.15,
			CredibilityTag:   "Rumor",
		},
		Links: []storage.ArticleSource{{SourceID: sourceID, URL: url}},
	}
}

func ago(d time.Duration) *time.Time {
	t := time.Now().UTC().Add(-d)
	return &t
}

func TestCreateSourceKeepsExplicitZeroValues(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	src := &storage.Source{Name: "Quiet", RSSURL: "https://quiet.example/feed", AdapterKind: "feed", SourceScore: 0, IsActive: false}
	require.NoError(t, s.CreateSource(ctx, src))

	got, err := s.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.Equal(t, 0.0, got.SourceScore)

	err = s.CreateSource(ctx, &storage.Source{Name: "Quiet"})
	require.ErrorIs(t, err, storage.ErrDuplicateSource)
}

func TestEnsureSourceIsIdempotent(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	first, err := s.EnsureSource(ctx, &storage.Source{Name: "PWTorch", RSSURL: "https://pwtorch.com/feed", AdapterKind: "feed", SourceScore: 0.7, IsActive: true})
	require.NoError(t, err)
	second, err := s.EnsureSource(ctx, &storage.Source{Name: "PWTorch", SourceScore: 0.1, IsActive: true})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 0.7, second.SourceScore)
}

func TestListActiveSourcesFiltersAndOrders(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()

	a := storagetest.Source(t, s, "Alpha", 0.5)
	b := storagetest.Source(t, s, "Beta", 0.5)
	c := storagetest.Source(t, s, "Gamma", 0.5)

	n, err := s.DeactivateSources(ctx, []string{"Beta", "Missing"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	list, err := s.ListActiveSources(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, a.ID, list[0].ID)
	require.Equal(t, c.ID, list[1].ID)

	list, err = s.ListActiveSources(ctx, b.ID, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, c.ID, list[0].ID)
}

func TestUpdateSource(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	src := storagetest.Source(t, s, "Alpha", 0.5)

	off, score := false, 0.9
	got, err := s.UpdateSource(ctx, src.ID, storage.SourcePatch{IsActive: &off, SourceScore: &score})
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.Equal(t, 0.9, got.SourceScore)

	_, err = s.UpdateSource(ctx, 9999, storage.SourcePatch{IsActive: &off})
	require.ErrorIs(t, err, storage.ErrSourceNotFound)
}

func TestSaveArticlesRollsBackWholeBatch(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	src := storagetest.Source(t, s, "Alpha", 0.5)

	_, err := s.SaveArticles(ctx, []storage.PendingArticle{
		pending("First story here", "https://a.example/1", "fp1", src.ID, nil),
		pending("Second story here", "https://a.example/1", "fp2", src.ID, nil),
	})
	require.Error(t, err)

	exists, err := s.URLExists(ctx, "https://a.example/1")
	require.NoError(t, err)
	require.False(t, exists)

	saved, err := s.SaveArticles(ctx, []storage.PendingArticle{
		pending("First story here", "https://a.example/1", "fp1", src.ID, nil),
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.NotZero(t, saved[0].ID)

	exists, err = s.FingerprintExists(ctx, "fp1")
	require.NoError(t, err)
	require.True(t, exists)

	trusts, err := s.SourceTrusts(ctx, saved[0].ID)
	require.NoError(t, err)
	require.Equal(t, []float64{0.5}, trusts)
}

func TestFindDuplicate(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	src := storagetest.Source(t, s, "Alpha", 0.5)

	saved, err := s.SaveArticles(ctx, []storage.PendingArticle{pending("A story", "https://a.example/1", "fp1", src.ID, nil)})
	require.NoError(t, err)

	got, err := s.FindDuplicate(ctx, "https://other.example/x", "fp1")
	require.NoError(t, err)
	require.Equal(t, saved[0].ID, got.ID)

	_, err = s.FindDuplicate(ctx, "https://other.example/x", "fp9")
	require.ErrorIs(t, err, storage.ErrArticleNotFound)
}

func TestListArticlesTopWeekExcludesOldArticles(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	src := storagetest.Source(t, s, "Alpha", 0.5)

	saved, err := s.SaveArticles(ctx, []storage.PendingArticle{
		pending("Old but popular", "https://a.example/old", "fp-old", src.ID, ago(10*24*time.Hour)),
		pending("Recent and quiet", "https://a.example/new", "fp-new", src.ID, ago(2*24*time.Hour)),
	})
	require.NoError(t, err)

	old := saved[0]
	old.Upvotes = 50
	require.NoError(t, s.SaveTally(ctx, &old))

	week, err := s.ListArticles(ctx, storage.ArticleQuery{Sort: storage.SortTopWeek})
	require.NoError(t, err)
	require.Len(t, week, 1)
	require.Equal(t, "Recent and quiet", week[0].Title)

	all, err := s.ListArticles(ctx, storage.ArticleQuery{Sort: storage.SortTopAll})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "Old but popular", all[0].Title)
}

func TestListArticlesFilters(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	alpha := storagetest.Source(t, s, "Alpha", 0.5)
	beta := storagetest.Source(t, s, "Beta", 0.9)

	confirmed := pending("Title Match Announced", "https://a.example/1", "fp1", alpha.ID, nil)
	confirmed.Article.CredibilityTag = "Confirmed"
	confirmed.Article.ContentSnippet = "A championship bout for Saturday"
	_, err := s.SaveArticles(ctx, []storage.PendingArticle{
		confirmed,
		pending("Backstage rumor mill", "https://b.example/2", "fp2", beta.ID, nil),
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		query storage.ArticleQuery
		want  []string
	}{
		{"tag", storage.ArticleQuery{Tag: "Confirmed"}, []string{"Title Match Announced"}},
		{"source", storage.ArticleQuery{SourceID: beta.ID}, []string{"Backstage rumor mill"}},
		{"title search", storage.ArticleQuery{Q: "RUMOR"}, []string{"Backstage rumor mill"}},
		{"snippet search", storage.ArticleQuery{Q: "championship"}, []string{"Title Match Announced"}},
		{"limit", storage.ArticleQuery{Limit: 1}, []string{"Backstage rumor mill"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListArticles(ctx, tt.query)
			require.NoError(t, err)
			var titles []string
			for _, a := range list {
				titles = append(titles, a.Title)
			}
			require.Equal(t, tt.want, titles)
		})
	}

	list, err := s.ListArticles(ctx, storage.ArticleQuery{SourceID: alpha.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Alpha", list[0].SourceName)
	require.NotNil(t, list[0].SourceID)
	require.Equal(t, alpha.ID, *list[0].SourceID)
}

func TestVoteRecords(t *testing.T) {
	s := storagetest.New(t)
	ctx := context.Background()
	src := storagetest.Source(t, s, "Alpha", 0.5)
	saved, err := s.SaveArticles(ctx, []storage.PendingArticle{pending("A story", "https://a.example/1", "fp1", src.ID, nil)})
	require.NoError(t, err)
	id := saved[0].ID

	v, err := s.FindVote(ctx, id, "u1")
	require.NoError(t, err)
	require.Nil(t, v)

	require.NoError(t, s.SaveVote(ctx, &storage.Vote{ArticleID: id, UserID: "u1", IsUpvote: true}))
	v, err = s.FindVote(ctx, id, "u1")
	require.NoError(t, err)
	require.True(t, v.IsUpvote)

	require.NoError(t, s.DeleteVote(ctx, v))
	v, err = s.FindVote(ctx, id, "u1")
	require.NoError(t, err)
	require.Nil(t, v)

	_, err = s.LockArticle(ctx, 424242)
	require.ErrorIs(t, err, storage.ErrArticleNotFound)
}

func TestIngestLockWithoutRedis(t *testing.T) {
	s := storagetest.New(t)
	release, ok, err := s.AcquireIngestLock(context.Background(), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	release()
	s.InvalidateArticleCache(context.Background())
}
