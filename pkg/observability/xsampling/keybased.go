package xsampling

import (
	"context"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
)

// KeyFunc 从 ctx 取采样 key，通常是 traceId。
type KeyFunc func(ctx context.Context) string

// KeyBasedOption 配置 KeyBasedSampler
type KeyBasedOption func(*KeyBasedSampler)

// WithOnEmptyKey 在 key 为空、即将退化为随机抽样时回调，可用来统计传播断裂。
func WithOnEmptyKey(fn func()) KeyBasedOption {
	return func(s *KeyBasedSampler) {
		if fn != nil {
			s.onEmptyKey = fn
		}
	}
}

// KeyBasedSampler 按 key 哈希做确定性采样：同一 traceId 在每个服务、
// 每个 span 上得到相同结论，整条链路要么全留要么全丢。
type KeyBasedSampler struct {
	rate       float64
	keyFunc    KeyFunc
	onEmptyKey func()
}

// NewKeyBasedSampler 创建 key 采样器。
//
// 错误：rate 越界或 NaN → ErrInvalidRate；keyFunc 为 nil → ErrNilKeyFunc；
// 任一 option 为 nil → ErrNilOption。
func NewKeyBasedSampler(rate float64, keyFunc KeyFunc, opts ...KeyBasedOption) (*KeyBasedSampler, error) {
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	if keyFunc == nil {
		return nil, ErrNilKeyFunc
	}
	s := &KeyBasedSampler{rate: rate, keyFunc: keyFunc}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(s)
	}
	return s, nil
}

// NewTraceIDRatio 创建按 traceId 一致性采样的比率采样器。
func NewTraceIDRatio(rate float64, opts ...KeyBasedOption) (*KeyBasedSampler, error) {
	return NewKeyBasedSampler(rate, xctx.TraceID, opts...)
}

func (s *KeyBasedSampler) ShouldSample(ctx context.Context) bool {
	return decide(s.rate, func() float64 {
		var key string
		if ctx != nil {
			key = s.keyFunc(ctx)
		}
		if key != "" {
			return HashRatio(key)
		}
		// 传播断裂时退化为随机抽样，比率不变
		if s.onEmptyKey != nil {
			s.onEmptyKey()
		}
		return rand.Float64()
	})
}

// SampleKey 对 key 做确定性决策；空 key 也参与哈希。
func (s *KeyBasedSampler) SampleKey(key string) bool {
	return decide(s.rate, func() float64 { return HashRatio(key) })
}

// Rate 返回采样比率
func (s *KeyBasedSampler) Rate() float64 { return s.rate }

// HashRatio 将 key 的 xxhash 映射到 [0, 1)：取高 53 位，正好填满 float64 尾数。
func HashRatio(key string) float64 {
	return float64(xxhash.Sum64String(key)>>11) / (1 << 53)
}

var _ Sampler = (*KeyBasedSampler)(nil)
