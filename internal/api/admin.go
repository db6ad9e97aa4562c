package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/LJTian/WrestlingNews/internal/collector"
	"github.com/LJTian/WrestlingNews/internal/logging"
	"github.com/LJTian/WrestlingNews/internal/scheduler"
	"github.com/LJTian/WrestlingNews/internal/storage"
)

func (s *Server) listSources(c *gin.Context) {
	list, err := s.store.ListSources(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, list)
}

type createSourceRequest struct {
	Name        string   `json:"name" binding:"required"`
	RSSURL      string   `json:"rss_url"`
	BaseURL     string   `json:"base_url"`
	SourceScore *float64 `json:"source_score"`
	IsActive    *bool    `json:"is_active"`
}

// createSource 抓取方式在这里确定一次并写入 adapter_kind
func (s *Server) createSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		badRequest(c, "name is required")
		return
	}

	kind, err := collector.KindFor(req.RSSURL, req.BaseURL)
	if err != nil {
		badRequest(c, "source needs an rss_url or a base_url of a supported publisher")
		return
	}

	src := &storage.Source{
		Name:        req.Name,
		RSSURL:      strings.TrimSpace(req.RSSURL),
		BaseURL:     strings.TrimSpace(req.BaseURL),
		AdapterKind: string(kind),
		SourceScore: 0.5,
		IsActive:    true,
	}
	if req.SourceScore != nil {
		if *req.SourceScore < 0 || *req.SourceScore > 1 {
			badRequest(c, "source_score must be within [0, 1]")
			return
		}
		src.SourceScore = *req.SourceScore
	}
	if req.IsActive != nil {
		src.IsActive = *req.IsActive
	}

	err = s.store.CreateSource(c.Request.Context(), src)
	if errors.Is(err, storage.ErrDuplicateSource) {
		badRequest(c, "source already exists")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusCreated, src)
}

type updateSourceRequest struct {
	IsActive    *bool    `json:"is_active"`
	SourceScore *float64 `json:"source_score"`
}

func (s *Server) updateSource(c *gin.Context) {
	id, valid := parseID(c.Param("id"))
	if !valid {
		badRequest(c, "invalid source id")
		return
	}
	var req updateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.SourceScore != nil && (*req.SourceScore < 0 || *req.SourceScore > 1) {
		badRequest(c, "source_score must be within [0, 1]")
		return
	}

	src, err := s.store.UpdateSource(c.Request.Context(), id, storage.SourcePatch{
		IsActive:    req.IsActive,
		SourceScore: req.SourceScore,
	})
	if errors.Is(err, storage.ErrSourceNotFound) {
		notFound(c, "source not found")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	ok(c, http.StatusOK, src)
}

type ingestRequest struct {
	SourceIDs []uint `json:"source_ids"`
}

// triggerIngest 同步执行一轮采集并返回新增条数
func (s *Server) triggerIngest(c *gin.Context) {
	var req ingestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}

	n, err := s.trigger.RunOnce(c.Request.Context(), req.SourceIDs...)
	if errors.Is(err, scheduler.ErrBusy) {
		fail(c, http.StatusConflict, "busy", "an ingestion cycle is already running")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	logging.Log.Infof("admin ingest inserted %d articles", n)
	c.JSON(http.StatusOK, gin.H{"inserted": n})
}
