package credibility

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/LJTian/WrestlingNews/internal/config"
)

const (
	TagConfirmed = "Confirmed"
	TagPending   = "Pending"
	TagRumor     = "Rumor"
)

// DefaultTrust 文章没有任何关联来源时使用的来源可信度
const DefaultTrust = 0.5

// Result 评分结果，由调用方写回 Article
type Result struct {
	Score float64
	Tag   string
}

// ZForConfidence 双侧置信水平对应的标准正态分位数，0.95 -> 1.959964
func ZForConfidence(confidence float64) float64 {
	return distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
}

// WilsonLowerBound 好评比例的 Wilson 置信区间下界；票数为 0 时返回 0。
// 票数少时结果偏保守，单张赞成票不会直接显得“可信”。
func WilsonLowerBound(upvotes, downvotes int, z float64) float64 {
	n := float64(upvotes + downvotes)
	if n <= 0 {
		return 0
	}
	p := float64(upvotes) / n
	z2 := z * z
	centre := p + z2/(2*n)
	spread := z * math.Sqrt((p*(1-p)+z2/(4*n))/n)
	return clamp01((centre - spread) / (1 + z2/n))
}

// Score 将投票统计与来源可信度加权合成最终分数并打标签
func Score(upvotes, downvotes int, sourceTrust float64, s config.Credibility) Result {
	wilson := WilsonLowerBound(upvotes, downvotes, ZForConfidence(s.Confidence))
	score := clamp01(s.WilsonWeight*wilson + s.SourceWeight*sourceTrust)
	return Result{Score: score, Tag: Tag(score, s)}
}

// Tag 按阈值给分数分类
func Tag(score float64, s config.Credibility) string {
	switch {
	case score >= s.ConfirmedThreshold:
		return TagConfirmed
	case score <= s.RumorThreshold:
		return TagRumor
	default:
		return TagPending
	}
}

// AverageTrust 所有佐证来源可信度的平均值
func AverageTrust(scores []float64) float64 {
	if len(scores) == 0 {
		return DefaultTrust
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// Scorer 持有配置来源，每次计算都重新读取配置
type Scorer struct {
	settings config.CredibilityProvider
}

func NewScorer(p config.CredibilityProvider) *Scorer {
	if p == nil {
		p = config.EnvCredibility{}
	}
	return &Scorer{settings: p}
}

func (s *Scorer) Score(upvotes, downvotes int, sourceTrust float64) Result {
	return Score(upvotes, downvotes, sourceTrust, s.settings.Credibility())
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
