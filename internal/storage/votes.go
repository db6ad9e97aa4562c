package storage

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockArticle 读取文章并在 PostgreSQL 上加行锁（SELECT ... FOR UPDATE），需在事务内调用
func (s *Store) LockArticle(ctx context.Context, id uint) (*Article, error) {
	db := s.DB.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	a := &Article{}
	err := db.First(a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lock article %d", id)
	}
	return a, nil
}

// FindVote 查找用户对文章的投票，没有投票时返回 nil, nil
func (s *Store) FindVote(ctx context.Context, articleID uint, userID string) (*Vote, error) {
	v := &Vote{}
	err := s.DB.WithContext(ctx).Where("article_id = ? AND user_id = ?", articleID, userID).First(v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find vote article=%d user=%s", articleID, userID)
	}
	return v, nil
}

// SaveVote 新建或更新投票记录
func (s *Store) SaveVote(ctx context.Context, v *Vote) error {
	return errors.Wrap(s.DB.WithContext(ctx).Save(v).Error, "save vote")
}

func (s *Store) DeleteVote(ctx context.Context, v *Vote) error {
	return errors.Wrap(s.DB.WithContext(ctx).Delete(v).Error, "delete vote")
}

// SaveTally 写回票数与可信度
func (s *Store) SaveTally(ctx context.Context, a *Article) error {
	err := s.DB.WithContext(ctx).Model(&Article{}).Where("id = ?", a.ID).Updates(map[string]any{
		"upvotes":           a.Upvotes,
		"downvotes":         a.Downvotes,
		"credibility_score": a.CredibilityScore,
		"credibility_tag":   a.CredibilityTag,
	}).Error
	return errors.Wrapf(err, "save tally for article %d", a.ID)
}
