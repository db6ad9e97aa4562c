package config

import (
	"fmt"
	"math"

	"github.com/LJTian/WrestlingNews/internal/logging"
)

// Credibility 可信度计算参数；每次计算时重新读取，不在进程启动时缓存
type Credibility struct {
	ConfirmedThreshold float64
	RumorThreshold     float64
	WilsonWeight       float64
	SourceWeight       float64
	// Confidence Wilson 下界使用的置信水平，0.95 对应 z≈1.96
	Confidence float64
}

// DefaultCredibility 默认参数
func DefaultCredibility() Credibility {
	return Credibility{
		ConfirmedThreshold: 0.7,
		RumorThreshold:     0.3,
		WilsonWeight:       0.7,
		SourceWeight:       0.3,
		Confidence:         0.95,
	}
}

func (c Credibility) Validate() error {
	if c.WilsonWeight < 0 || c.SourceWeight < 0 {
		return fmt.Errorf("credibility weights must be non-negative: wilson=%v source=%v", c.WilsonWeight, c.SourceWeight)
	}
	if math.Abs(c.WilsonWeight+c.SourceWeight-1) > 1e-6 {
		return fmt.Errorf("credibility weights must sum to 1: wilson=%v source=%v", c.WilsonWeight, c.SourceWeight)
	}
	if c.ConfirmedThreshold < 0 || c.ConfirmedThreshold > 1 || c.RumorThreshold < 0 || c.RumorThreshold > 1 {
		return fmt.Errorf("credibility thresholds must be within [0,1]: confirmed=%v rumor=%v", c.ConfirmedThreshold, c.RumorThreshold)
	}
	if c.RumorThreshold >= c.ConfirmedThreshold {
		return fmt.Errorf("rumor threshold %v must be below confirmed threshold %v", c.RumorThreshold, c.ConfirmedThreshold)
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("credibility confidence must be within (0,1): %v", c.Confidence)
	}
	return nil
}

// CredibilityProvider 由调用方注入评分器与采集流程
type CredibilityProvider interface {
	Credibility() Credibility
}

// StaticCredibility 固定参数，主要用于测试
type StaticCredibility Credibility

func (s StaticCredibility) Credibility() Credibility {
	return Credibility(s)
}

// EnvCredibility 每次调用都从环境变量读取，部署间修改阈值无需重启
type EnvCredibility struct{}

func (EnvCredibility) Credibility() Credibility {
	def := DefaultCredibility()
	c := Credibility{
		ConfirmedThreshold: getFloat("CREDIBILITY_CONFIRMED_THRESHOLD", def.ConfirmedThreshold),
		RumorThreshold:     getFloat("CREDIBILITY_RUMOR_THRESHOLD", def.RumorThreshold),
		WilsonWeight:       getFloat("CREDIBILITY_WILSON_WEIGHT", def.WilsonWeight),
		SourceWeight:       getFloat("CREDIBILITY_SOURCE_WEIGHT", def.SourceWeight),
		Confidence:         getFloat("CREDIBILITY_CONFIDENCE", def.Confidence),
	}
	if err := c.Validate(); err != nil {
		logging.Log.Warnf("config: invalid credibility settings, using defaults: %v", err)
		return def
	}
	return c
}
