package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/LJTian/WrestlingNews/internal/collector"
	"github.com/LJTian/WrestlingNews/internal/config"
	"github.com/LJTian/WrestlingNews/internal/credibility"
	"github.com/LJTian/WrestlingNews/internal/ingest"
	"github.com/LJTian/WrestlingNews/internal/logging"
	"github.com/LJTian/WrestlingNews/internal/scheduler"
	"github.com/LJTian/WrestlingNews/internal/storage"
)

// 仅执行一轮采集的命令行入口：适合手动触发或由外部 cron 调用
func main() {
	sourceFlag := flag.String("source", "", "comma separated source ids, empty means all active sources")
	seedFlag := flag.Bool("seed", false, "ensure sources from SOURCES_FILE (or built-in list) before ingesting")
	flag.Parse()

	cfg := config.Load()
	logging.Init("wrestlingnews-ingest", cfg.Env, cfg.LogLevel)

	ids, err := parseIDs(*sourceFlag)
	if err != nil {
		logging.Log.Fatalf("invalid -source: %v", err)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		logging.Log.Fatalf("init store failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *seedFlag {
		seed, err := config.LoadSeedFile(cfg.SourcesFile)
		if err != nil {
			logging.Log.Fatalf("load sources failed: %v", err)
		}
		if _, err := ingest.SeedSources(ctx, store, seed); err != nil {
			logging.Log.Fatalf("seed sources failed: %v", err)
		}
	}

	registry := collector.NewRegistry(collector.Options{
		HTTPTimeout:      cfg.HTTPTimeout,
		ThumbnailTimeout: cfg.ThumbnailTimeout,
	})
	orch := ingest.New(store, registry, credibility.NewScorer(config.EnvCredibility{}), ingest.Options{
		FetchConcurrency: cfg.IngestFetchConcurrency,
	})

	// 不启动 cron，只借用调度器的互斥与分布式锁
	sched, err := scheduler.New(cfg.IngestCron, orch, store, scheduler.Options{LockLease: storage.DefaultIngestLease})
	if err != nil {
		logging.Log.Fatalf("init scheduler failed: %v", err)
	}

	n, err := sched.RunOnce(ctx, ids...)
	if err != nil {
		logging.Log.Fatalf("ingest failed after %d articles: %v", n, err)
	}
	fmt.Printf("inserted %d articles\n", n)
}

func parseIDs(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("bad source id %q", part)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}
