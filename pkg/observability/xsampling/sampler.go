package xsampling

import (
	"context"
	"math/rand/v2"
)

// Sampler 决定一次操作是否被采样。
//
// ctx 携带决策所需的关联信息（如 traceId），不得为 nil。
type Sampler interface {
	ShouldSample(ctx context.Context) bool
}

// constSampler 固定决策
type constSampler bool

func (s constSampler) ShouldSample(context.Context) bool { return bool(s) }

// Always 全部采样
func Always() Sampler { return constSampler(true) }

// Never 全部丢弃
func Never() Sampler { return constSampler(false) }

// RateSampler 按比率随机采样，决策与 traceId 无关，跨进程不一致。
// 适合日志抽样，不适合链路。
type RateSampler struct {
	rate float64
}

// NewRateSampler 创建随机比率采样器，rate 须在 [0, 1] 内。
func NewRateSampler(rate float64) (*RateSampler, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	return &RateSampler{rate: rate}, nil
}

func (s *RateSampler) ShouldSample(context.Context) bool {
	return decide(s.rate, rand.Float64)
}

// Rate 返回采样比率
func (s *RateSampler) Rate() float64 { return s.rate }

// decide 处理 0 与 1 两个端点，避免在确定结果上消耗随机数或哈希。
func decide(rate float64, draw func() float64) bool {
	switch {
	case rate <= 0:
		return false
	case rate >= 1:
		return true
	default:
		return draw() < rate
	}
}

var (
	_ Sampler = constSampler(false)
	_ Sampler = (*RateSampler)(nil)
)
