package votes

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/LJTian/WrestlingNews/internal/credibility"
	"github.com/LJTian/WrestlingNews/internal/logging"
	"github.com/LJTian/WrestlingNews/internal/storage"
)

var (
	ErrArticleNotFound  = errors.New("article not found")
	ErrInvalidDirection = errors.New("invalid vote direction")
	ErrMissingUser      = errors.New("missing user id")
)

type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Clear Direction = "clear"
)

// ParseDirection 只接受 up / down / clear（忽略大小写与首尾空白）
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case Up, Down, Clear:
		return d, nil
	default:
		return "", errors.Wrapf(ErrInvalidDirection, "%q", s)
	}
}

// Tally 投票后的文章统计
type Tally struct {
	ArticleID        uint      `json:"articleId"`
	Upvotes          int       `json:"upvotes"`
	Downvotes        int       `json:"downvotes"`
	CredibilityScore float64   `json:"credibilityScore"`
	CredibilityTag   string    `json:"credibilityTag"`
	Direction        Direction `json:"direction"`
}

// Ledger 维护每个用户对每篇文章的投票状态，并在同一事务内重算可信度
type Ledger struct {
	store  *storage.Store
	scorer *credibility.Scorer
}

func NewLedger(store *storage.Store, scorer *credibility.Scorer) *Ledger {
	return &Ledger{store: store, scorer: scorer}
}

// Cast 状态机：无票 / 赞成 / 反对。重复投同一方向是空操作，clear 删除记录。
func (l *Ledger) Cast(ctx context.Context, articleID uint, userID string, dir Direction) (Tally, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Tally{}, ErrMissingUser
	}
	dir, err := ParseDirection(string(dir))
	if err != nil {
		return Tally{}, err
	}

	var out Tally
	err = l.store.Transaction(ctx, func(tx *storage.Store) error {
		a, err := tx.LockArticle(ctx, articleID)
		if errors.Is(err, storage.ErrArticleNotFound) {
			return ErrArticleNotFound
		}
		if err != nil {
			return err
		}

		v, err := tx.FindVote(ctx, articleID, userID)
		if err != nil {
			return err
		}

		changed, err := apply(ctx, tx, a, v, userID, dir)
		if err != nil {
			return err
		}

		if changed {
			trusts, err := tx.SourceTrusts(ctx, a.ID)
			if err != nil {
				return err
			}
			r := l.scorer.Score(a.Upvotes, a.Downvotes, credibility.AverageTrust(trusts))
			a.CredibilityScore, a.CredibilityTag = r.Score, r.Tag
			if err := tx.SaveTally(ctx, a); err != nil {
				return err
			}
		}

		out = Tally{
			ArticleID:        a.ID,
			Upvotes:          a.Upvotes,
			Downvotes:        a.Downvotes,
			CredibilityScore: a.CredibilityScore,
			CredibilityTag:   a.CredibilityTag,
			Direction:        current(v, dir, changed),
		}
		return nil
	})
	if err != nil {
		return Tally{}, err
	}

	l.store.InvalidateArticleCache(ctx)
	logging.Log.WithFields(logrus.Fields{"article": articleID, "direction": dir}).
		Debugf("vote cast: up=%d down=%d tag=%s", out.Upvotes, out.Downvotes, out.CredibilityTag)
	return out, nil
}

// apply 修改票数与投票记录，返回票数是否发生变化
func apply(ctx context.Context, tx *storage.Store, a *storage.Article, v *storage.Vote, userID string, dir Direction) (bool, error) {
	switch dir {
	case Clear:
		if v == nil {
			return false, nil
		}
		if v.IsUpvote {
			a.Upvotes = decrement(a.Upvotes)
		} else {
			a.Downvotes = decrement(a.Downvotes)
		}
		return true, tx.DeleteVote(ctx, v)

	case Up, Down:
		up := dir == Up
		if v != nil && v.IsUpvote == up {
			return false, nil
		}
		if up {
			a.Upvotes++
		} else {
			a.Downvotes++
		}
		if v == nil {
			v = &storage.Vote{ArticleID: a.ID, UserID: userID}
		} else if up {
			a.Downvotes = decrement(a.Downvotes)
		} else {
			a.Upvotes = decrement(a.Upvotes)
		}
		v.IsUpvote = up
		return true, tx.SaveVote(ctx, v)
	}
	return false, errors.Wrapf(ErrInvalidDirection, "%q", dir)
}

// current 投票后用户所处的状态
func current(before *storage.Vote, dir Direction, changed bool) Direction {
	if changed {
		return dir
	}
	if before == nil {
		return Clear
	}
	if before.IsUpvote {
		return Up
	}
	return Down
}

// decrement 票数不会小于 0
func decrement(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}
