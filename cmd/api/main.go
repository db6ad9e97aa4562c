package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/LJTian/WrestlingNews/internal/api"
	"github.com/LJTian/WrestlingNews/internal/collector"
	"github.com/LJTian/WrestlingNews/internal/config"
	"github.com/LJTian/WrestlingNews/internal/credibility"
	"github.com/LJTian/WrestlingNews/internal/ingest"
	"github.com/LJTian/WrestlingNews/internal/logging"
	"github.com/LJTian/WrestlingNews/internal/scheduler"
	"github.com/LJTian/WrestlingNews/internal/storage"
	"github.com/LJTian/WrestlingNews/internal/votes"
)

const (
	startupIngestDelay = 15 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	cfg := config.Load()
	logging.Init("wrestlingnews-api", cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logging.Log.Fatalf("invalid config: %v", err)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		logging.Log.Fatalf("init store failed: %v", err)
	}

	// 生产环境只在显式配置 SOURCES_FILE 时初始化来源
	if !cfg.IsProd() || cfg.SourcesFile != "" {
		seed, err := config.LoadSeedFile(cfg.SourcesFile)
		if err != nil {
			logging.Log.Fatalf("load sources failed: %v", err)
		}
		n, err := ingest.SeedSources(context.Background(), store, seed)
		if err != nil {
			logging.Log.Fatalf("seed sources failed: %v", err)
		}
		logging.Log.Infof("seeded %d sources", n)
	}

	registry := collector.NewRegistry(collector.Options{
		HTTPTimeout:      cfg.HTTPTimeout,
		ThumbnailTimeout: cfg.ThumbnailTimeout,
	})
	scorer := credibility.NewScorer(config.EnvCredibility{})
	orch := ingest.New(store, registry, scorer, ingest.Options{FetchConcurrency: cfg.IngestFetchConcurrency})
	ledger := votes.NewLedger(store, scorer)

	sched, err := scheduler.New(cfg.IngestCron, orch, store, scheduler.Options{
		StartupDelay: startupIngestDelay,
		LockLease:    storage.DefaultIngestLease,
	})
	if err != nil {
		logging.Log.Fatalf("init scheduler failed: %v", err)
	}
	sched.Start()

	r := gin.Default()
	api.NewServer(store, orch, ledger, sched, cfg).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logging.Log.Infof("starting api server at %s ...", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Log.Fatalf("server exit: %v", err)
		}
	}()

	<-ctx.Done()
	logging.Log.Info("shutting down ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Log.Errorf("http shutdown: %v", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logging.Log.Errorf("scheduler stop: %v", err)
	}
}
