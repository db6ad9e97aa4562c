package ingest

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/LJTian/WrestlingNews/internal/collector"
	"github.com/LJTian/WrestlingNews/internal/config"
	"github.com/LJTian/WrestlingNews/internal/logging"
	"github.com/LJTian/WrestlingNews/internal/storage"
)

// SeedSources 确保种子文件中的来源存在，再停用 Disabled 列表中的来源。
// 无法确定抓取方式的来源只记录警告并跳过。
func SeedSources(ctx context.Context, store *storage.Store, seed *config.SeedFile) (int, error) {
	n := 0
	for _, s := range seed.Sources {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			continue
		}
		kind, err := collector.KindFor(s.RSSURL, s.BaseURL)
		if err != nil {
			logging.Log.WithField("source", name).Warnf("seed: skip source: %v", err)
			continue
		}
		if _, err := store.EnsureSource(ctx, &storage.Source{
			Name:        name,
			RSSURL:      strings.TrimSpace(s.RSSURL),
			BaseURL:     strings.TrimSpace(s.BaseURL),
			AdapterKind: string(kind),
			SourceScore: s.SourceScore,
			IsActive:    true,
		}); err != nil {
			return n, errors.Wrapf(err, "seed source %s", name)
		}
		n++
	}

	if len(seed.Disabled) > 0 {
		off, err := store.DeactivateSources(ctx, seed.Disabled)
		if err != nil {
			return n, errors.Wrap(err, "deactivate sources")
		}
		if off > 0 {
			logging.Log.Infof("seed: deactivated %d sources", off)
		}
	}
	return n, nil
}
