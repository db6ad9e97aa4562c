package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	SortLatest  = "latest"
	SortTopWeek = "top_week"
	SortTopAll  = "top_all"

	DefaultListLimit = 50

	titleMaxRunes = 500
	urlMaxRunes   = 1000
)

// PendingArticle 待写入的文章及其来源关联
type PendingArticle struct {
	Article Article
	Links   []ArticleSource
}

// ArticleQuery 列表查询条件，零值字段表示不过滤
type ArticleQuery struct {
	Tag      string
	SourceID uint
	Q        string
	Sort     string
	Limit    int
}

// ArticleView 列表行：文章本身加上第一个来源
type ArticleView struct {
	Article
	SourceID   *uint  `json:"sourceId"`
	SourceName string `json:"sourceName"`
}

// URLExists 判断 canonical url 是否已入库
func (s *Store) URLExists(ctx context.Context, url string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&Article{}).Where("canonical_url = ?", url).Count(&count).Error
	return count > 0, errors.Wrap(err, "check url")
}

// FingerprintExists 判断标题指纹是否已入库
func (s *Store) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&Article{}).Where("dedup_fingerprint = ?", fingerprint).Count(&count).Error
	return count > 0, errors.Wrap(err, "check fingerprint")
}

// FindDuplicate 按 url 或指纹查找已存在的文章，不存在时返回 ErrArticleNotFound
func (s *Store) FindDuplicate(ctx context.Context, url, fingerprint string) (*Article, error) {
	a := &Article{}
	err := s.DB.WithContext(ctx).
		Where("canonical_url = ? OR dedup_fingerprint = ?", url, fingerprint).
		Order("id ASC").
		First(a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArticleNotFound
	}
	return a, errors.Wrap(err, "find duplicate article")
}

// SaveArticles 在一个事务中写入一批文章及其来源关联，任一失败则整体回滚
func (s *Store) SaveArticles(ctx context.Context, items []PendingArticle) ([]Article, error) {
	var saved []Article
	err := s.Transaction(ctx, func(tx *Store) error {
		saved = make([]Article, 0, len(items))
		for _, it := range items {
			a, err := tx.insertArticle(ctx, it)
			if err != nil {
				return err
			}
			saved = append(saved, *a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// insertArticle 基于副本写入，回滚后重试不会带上上一次分配的主键
func (s *Store) insertArticle(ctx context.Context, it PendingArticle) (*Article, error) {
	a := it.Article
	a.ID = 0
	a.Sources = nil
	a.Votes = nil
	a.Title = truncateRunesDB(toValidUTF8(a.Title), titleMaxRunes)
	a.ContentSnippet = toValidUTF8(a.ContentSnippet)
	a.ThumbnailURL = truncateRunesDB(a.ThumbnailURL, urlMaxRunes)

	if err := s.DB.WithContext(ctx).Create(&a).Error; err != nil {
		return nil, errors.Wrapf(err, "insert article %s", a.CanonicalURL)
	}
	for _, l := range it.Links {
		link := ArticleSource{
			ArticleID: a.ID,
			SourceID:  l.SourceID,
			URL:       truncateRunesDB(l.URL, urlMaxRunes),
		}
		if err := s.DB.WithContext(ctx).Create(&link).Error; err != nil {
			return nil, errors.Wrapf(err, "link article %d to source %d", a.ID, l.SourceID)
		}
	}
	return &a, nil
}

func (s *Store) GetArticle(ctx context.Context, id uint) (*Article, error) {
	a := &Article{}
	err := s.DB.WithContext(ctx).First(a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get article %d", id)
	}
	return a, nil
}

// GetArticleView 单篇文章详情，附带第一个来源
func (s *Store) GetArticleView(ctx context.Context, id uint) (*ArticleView, error) {
	a, err := s.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.attachSources(ctx, []Article{*a})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListArticles 按标签、来源、关键字与排序返回文章列表，并使用 Redis 做简单缓存
// sort: latest(默认) / top_week / top_all
func (s *Store) ListArticles(ctx context.Context, q ArticleQuery) ([]ArticleView, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	q.Q = strings.TrimSpace(q.Q)

	cacheKey := s.listCacheKey(ctx, q)

	// L2: Redis 缓存
	if s.Redis != nil && cacheKey != "" {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []ArticleView
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	db := s.DB.WithContext(ctx).Model(&Article{})
	if q.Tag != "" {
		db = db.Where("credibility_tag = ?", q.Tag)
	}
	if q.SourceID != 0 {
		db = db.Where("id IN (?)", s.DB.Model(&ArticleSource{}).Select("article_id").Where("source_id = ?", q.SourceID))
	}
	if q.Q != "" {
		like := "%" + strings.ToLower(q.Q) + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(content_snippet) LIKE ?", like, like)
	}

	switch q.Sort {
	case SortTopWeek:
		// 未发布时间的文章按入库时间计算
		since := nowUTC().Add(-7 * 24 * time.Hour)
		db = db.Where("COALESCE(published_at, created_at) >= ?", since).
			Order("(upvotes - downvotes) DESC").
			Order("created_at DESC")
	case SortTopAll:
		db = db.Order("(upvotes - downvotes) DESC").Order("created_at DESC")
	default:
		db = db.Order("created_at DESC")
	}

	var list []Article
	if err := db.Order("id DESC").Limit(q.Limit).Find(&list).Error; err != nil {
		return nil, errors.Wrap(err, "list articles")
	}

	views, err := s.attachSources(ctx, list)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil && cacheKey != "" && len(views) > 0 {
		if bs, err := json.Marshal(views); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}
	return views, nil
}

// attachSources 为每篇文章补上最早关联的来源名称与 id
func (s *Store) attachSources(ctx context.Context, list []Article) ([]ArticleView, error) {
	views := make([]ArticleView, len(list))
	if len(list) == 0 {
		return views, nil
	}
	ids := make([]uint, len(list))
	for i, a := range list {
		ids[i] = a.ID
		views[i].Article = a
	}

	var rows []struct {
		ArticleID uint
		SourceID  uint
		Name      string
	}
	err := s.DB.WithContext(ctx).Model(&ArticleSource{}).
		Select("article_sources.article_id, article_sources.source_id, sources.name").
		Joins("JOIN sources ON sources.id = article_sources.source_id").
		Where("article_sources.article_id IN ?", ids).
		Order("article_sources.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "load article sources")
	}

	first := make(map[uint]int, len(rows))
	for i, r := range rows {
		if _, ok := first[r.ArticleID]; !ok {
			first[r.ArticleID] = i
		}
	}
	for i := range views {
		if idx, ok := first[views[i].ID]; ok {
			sid := rows[idx].SourceID
			views[i].SourceID = &sid
			views[i].SourceName = rows[idx].Name
		}
	}
	return views, nil
}

func (q ArticleQuery) cacheSuffix() string {
	return fmt.Sprintf("%s:%d:%s:%s:%d", q.Tag, q.SourceID, strings.ToLower(q.Q), q.Sort, q.Limit)
}
