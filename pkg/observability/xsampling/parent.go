package xsampling

import (
	"context"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
)

// ParentBasedSampler 跟随父级采样决策的策略
//
// 活跃关联上下文中已有 spanId 与 traceFlags 时视为非根，直接沿用 traceFlags 的采样位；
// 否则交给 root 决策。
type ParentBasedSampler struct {
	root Sampler
}

// NewParentBased 创建跟随父级决策的采样器，root 为 nil 时返回 ErrNilSampler。
func NewParentBased(root Sampler) (*ParentBasedSampler, error) {
	if root == nil {
		return nil, ErrNilSampler
	}
	return &ParentBasedSampler{root: root}, nil
}

func (s *ParentBasedSampler) ShouldSample(ctx context.Context) bool {
	if sampled, ok := parentDecision(ctx); ok {
		return sampled
	}
	return s.root.ShouldSample(ctx)
}

// Root 返回根采样器
func (s *ParentBasedSampler) Root() Sampler {
	return s.root
}

// parentDecision 从 traceFlags 读取父级采样位（W3C: 最低位 01 表示已采样）。
func parentDecision(ctx context.Context) (sampled, ok bool) {
	if ctx == nil || xctx.SpanID(ctx) == "" {
		return false, false
	}
	flags := xctx.TraceFlags(ctx)
	if len(flags) != 2 {
		return false, false
	}
	low := flags[1]
	switch {
	case low >= '0' && low <= '9':
		return (low-'0')&0x01 == 1, true
	case low >= 'a' && low <= 'f':
		return (low-'a'+10)&0x01 == 1, true
	case low >= 'A' && low <= 'F':
		return (low-'A'+10)&0x01 == 1, true
	}
	return false, false
}

var _ Sampler = (*ParentBasedSampler)(nil)
