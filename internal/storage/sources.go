package storage

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// SourcePatch 管理接口可修改的字段，nil 表示不修改
type SourcePatch struct {
	IsActive    *bool
	SourceScore *float64
}

// EnsureSource 按名称确保来源存在，已存在时原样返回
func (s *Store) EnsureSource(ctx context.Context, src *Source) (*Source, error) {
	existing := &Source{}
	err := s.DB.WithContext(ctx).Where("name = ?", src.Name).First(existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(err, "find source %s", src.Name)
	}

	if err := s.createSource(ctx, src); err != nil {
		return nil, err
	}
	return src, nil
}

// CreateSource 新建来源，名称重复时返回 ErrDuplicateSource
func (s *Store) CreateSource(ctx context.Context, src *Source) error {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&Source{}).Where("name = ?", src.Name).Count(&count).Error; err != nil {
		return errors.Wrap(err, "count sources")
	}
	if count > 0 {
		return ErrDuplicateSource
	}
	return s.createSource(ctx, src)
}

// createSource 零值字段会被 gorm 的 default 覆盖，写入后再按调用方的值修正
func (s *Store) createSource(ctx context.Context, src *Source) error {
	active, score := src.IsActive, src.SourceScore
	if err := s.DB.WithContext(ctx).Create(src).Error; err != nil {
		return errors.Wrapf(err, "create source %s", src.Name)
	}
	if active && score != 0 {
		return nil
	}
	err := s.DB.WithContext(ctx).Model(&Source{}).Where("id = ?", src.ID).Updates(map[string]any{
		"is_active":    active,
		"source_score": score,
	}).Error
	src.IsActive, src.SourceScore = active, score
	return errors.Wrapf(err, "create source %s", src.Name)
}

// ListSources 按名称排序返回全部来源
func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	var list []Source
	err := s.DB.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, errors.Wrap(err, "list sources")
}

// ListActiveSources 返回启用中的来源（按 id 排序），ids 非空时只返回其中的来源
func (s *Store) ListActiveSources(ctx context.Context, ids ...uint) ([]Source, error) {
	var list []Source
	q := s.DB.WithContext(ctx).Where("is_active = ?", true)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	err := q.Order("id ASC").Find(&list).Error
	return list, errors.Wrap(err, "list active sources")
}

func (s *Store) GetSource(ctx context.Context, id uint) (*Source, error) {
	src := &Source{}
	err := s.DB.WithContext(ctx).First(src, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSourceNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get source %d", id)
	}
	return src, nil
}

// UpdateSource 修改启用状态或可信度
func (s *Store) UpdateSource(ctx context.Context, id uint, patch SourcePatch) (*Source, error) {
	src, err := s.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if patch.IsActive != nil {
		updates["is_active"] = *patch.IsActive
	}
	if patch.SourceScore != nil {
		updates["source_score"] = *patch.SourceScore
	}
	if len(updates) == 0 {
		return src, nil
	}
	if err := s.DB.WithContext(ctx).Model(src).Updates(updates).Error; err != nil {
		return nil, errors.Wrapf(err, "update source %d", id)
	}
	return s.GetSource(ctx, id)
}

// DeactivateSources 按名称停用已知抓取异常的来源，返回实际停用的数量
func (s *Store) DeactivateSources(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).Model(&Source{}).
		Where("name IN ? AND is_active = ?", names, true).
		Update("is_active", false)
	return res.RowsAffected, errors.Wrap(res.Error, "deactivate sources")
}

// SourceTrusts 返回佐证某篇文章的所有来源的可信度
func (s *Store) SourceTrusts(ctx context.Context, articleID uint) ([]float64, error) {
	var scores []float64
	err := s.DB.WithContext(ctx).Model(&Source{}).
		Joins("JOIN article_sources ON article_sources.source_id = sources.id").
		Where("article_sources.article_id = ?", articleID).
		Pluck("sources.source_score", &scores).Error
	return scores, errors.Wrapf(err, "source trusts for article %d", articleID)
}
