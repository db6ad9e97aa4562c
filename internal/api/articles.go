package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/LJTian/WrestlingNews/internal/credibility"
	"github.com/LJTian/WrestlingNews/internal/ingest"
	"github.com/LJTian/WrestlingNews/internal/storage"
)

// listArticles 支持 tag / source_id / q / sort / limit
// sort: latest(默认) / top_week / top_all
func (s *Server) listArticles(c *gin.Context) {
	q := storage.ArticleQuery{
		Tag:   normalizeTag(c.Query("tag")),
		Q:     c.Query("q"),
		Sort:  c.DefaultQuery("sort", storage.SortLatest),
		Limit: storage.DefaultListLimit,
	}
	switch q.Sort {
	case storage.SortLatest, storage.SortTopWeek, storage.SortTopAll:
	default:
		q.Sort = storage.SortLatest
	}

	if raw := c.Query("source_id"); raw != "" {
		id, valid := parseID(raw)
		if !valid {
			badRequest(c, "invalid source_id")
			return
		}
		q.SourceID = id
	}

	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if q.Limit > s.cfg.ListMaxLimit {
		q.Limit = s.cfg.ListMaxLimit
	}

	items, err := s.store.ListArticles(c.Request.Context(), q)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// normalizeTag 前端可能传 undefined/null 等占位值，统一视为不过滤
func normalizeTag(raw string) string {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "undefined", "null", "none", "all":
		return ""
	case "confirmed":
		return credibility.TagConfirmed
	case "pending":
		return credibility.TagPending
	case "rumor":
		return credibility.TagRumor
	}
	return raw
}

func (s *Server) getArticle(c *gin.Context) {
	id, valid := parseID(c.Param("id"))
	if !valid {
		badRequest(c, "invalid article id")
		return
	}
	a, err := s.store.GetArticleView(c.Request.Context(), id)
	if errors.Is(err, storage.ErrArticleNotFound) {
		notFound(c, "article not found")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, a)
}

type articleSourceRequest struct {
	SourceID uint   `json:"source_id" binding:"required"`
	URL      string `json:"url"`
}

type createArticleRequest struct {
	Title          string                 `json:"title" binding:"required"`
	CanonicalURL   string                 `json:"canonical_url" binding:"required"`
	ContentSnippet string                 `json:"content_snippet"`
	ThumbnailURL   string                 `json:"thumbnail_url"`
	PublishedAt    *time.Time             `json:"published_at"`
	Sources        []articleSourceRequest `json:"sources"`
}

// createArticle 手工录入；url 已存在时返回已有文章（200），新建返回 201
func (s *Server) createArticle(c *gin.Context) {
	var req createArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	in := ingest.ManualArticle{
		Title:        req.Title,
		CanonicalURL: req.CanonicalURL,
		Snippet:      req.ContentSnippet,
		ThumbnailURL: req.ThumbnailURL,
		PublishedAt:  req.PublishedAt,
	}
	for _, src := range req.Sources {
		in.Sources = append(in.Sources, ingest.ManualSource{SourceID: src.SourceID, URL: src.URL})
	}

	a, created, err := s.articles.CreateArticle(c.Request.Context(), in)
	switch {
	case errors.Is(err, storage.ErrSourceNotFound):
		badRequest(c, "unknown source id")
		return
	case errors.Is(err, ingest.ErrInvalidArticle):
		badRequest(c, err.Error())
		return
	case err != nil:
		internalError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	view, err := s.store.GetArticleView(c.Request.Context(), a.ID)
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, status, view)
}
