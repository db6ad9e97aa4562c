package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/WrestlingNews/internal/config"
	"github.com/LJTian/WrestlingNews/internal/ingest"
	"github.com/LJTian/WrestlingNews/internal/logging"
	"github.com/LJTian/WrestlingNews/internal/storage"
	"github.com/LJTian/WrestlingNews/internal/votes"
)

// IngestTrigger 手动触发一轮采集，scheduler.Scheduler 即为实现
type IngestTrigger interface {
	RunOnce(ctx context.Context, sourceIDs ...uint) (int, error)
}

type Server struct {
	store    *storage.Store
	articles *ingest.Orchestrator
	ledger   *votes.Ledger
	trigger  IngestTrigger
	cfg      *config.Config
}

func NewServer(store *storage.Store, articles *ingest.Orchestrator, ledger *votes.Ledger, trigger IngestTrigger, cfg *config.Config) *Server {
	return &Server{
		store:    store,
		articles: articles,
		ledger:   ledger,
		trigger:  trigger,
		cfg:      cfg,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/articles", s.listArticles)
		v1.GET("/articles/:id", s.getArticle)
		v1.POST("/articles", s.createArticle)
		v1.POST("/votes", s.castVote)
	}

	admin := v1.Group("/admin")
	// 配置了账号密码时管理接口启用 Basic Auth；生产环境启动时已强制要求配置
	if s.cfg.BasicAuthUser != "" && s.cfg.BasicAuthPass != "" {
		admin.Use(basicAuthMiddleware(s.cfg.BasicAuthUser, s.cfg.BasicAuthPass))
	}
	{
		admin.GET("/sources", s.listSources)
		admin.POST("/sources", s.createSource)
		admin.PATCH("/sources/:id", s.updateSource)
		admin.POST("/ingest", s.triggerIngest)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, "bad_request", message)
}

func notFound(c *gin.Context, message string) {
	fail(c, http.StatusNotFound, "not_found", message)
}

// internalError 记录原始错误，对外只返回通用信息
func internalError(c *gin.Context, err error) {
	logging.Log.WithField("path", c.FullPath()).Errorf("request failed: %+v", err)
	fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
