package xsampling

import (
	"fmt"
	"strconv"
	"strings"
)

// PolicyKind 采样策略类型
type PolicyKind int

const (
	PolicyAlways PolicyKind = iota
	PolicyNever
	PolicyRatio
	PolicyParentRatio
)

// String 实现 fmt.Stringer
func (k PolicyKind) String() string {
	switch k {
	case PolicyAlways:
		return "always"
	case PolicyNever:
		return "never"
	case PolicyRatio:
		return "ratio"
	case PolicyParentRatio:
		return "parent"
	default:
		return "unknown"
	}
}

// Policy 是从配置解析出的采样策略。
type Policy struct {
	Kind  PolicyKind
	Ratio float64
}

// 常用策略
var (
	AlwaysPolicy = Policy{Kind: PolicyAlways, Ratio: 1}
	NeverPolicy  = Policy{Kind: PolicyNever, Ratio: 0}
)

// ParsePolicy 解析采样策略字符串
//
// 支持的格式（大小写不敏感，忽略首尾空白）：
//
//	always                       全采样
//	never                        不采样
//	0.25                         按 traceId 比率采样
//	parent:0.25                  非根 span 跟随父级，根 span 按比率
//	parentbased_ratio:0.25       同上
func ParsePolicy(s string) (Policy, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "always", "always_on":
		return AlwaysPolicy, nil
	case "never", "always_off":
		return NeverPolicy, nil
	}

	kind := PolicyRatio
	for _, prefix := range []string{"parent:", "parentbased_ratio:", "parent-based:"} {
		if rest, ok := strings.CutPrefix(v, prefix); ok {
			kind = PolicyParentRatio
			v = rest
			break
		}
	}

	ratio, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
	if err := validateRate(ratio); err != nil {
		return Policy{}, fmt.Errorf("%w: %q: %w", ErrInvalidPolicy, s, err)
	}
	return Policy{Kind: kind, Ratio: ratio}, nil
}

// MustParsePolicy 解析失败时 panic，仅用于常量初始化。
func MustParsePolicy(s string) Policy {
	p, err := ParsePolicy(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String 返回可被 ParsePolicy 解析的规范形式。
func (p Policy) String() string {
	switch p.Kind {
	case PolicyAlways:
		return "always"
	case PolicyNever:
		return "never"
	case PolicyParentRatio:
		return "parent:" + strconv.FormatFloat(p.Ratio, 'f', -1, 64)
	default:
		return strconv.FormatFloat(p.Ratio, 'f', -1, 64)
	}
}

// Sampler 返回与策略对应的 Sampler。
func (p Policy) Sampler() (Sampler, error) {
	switch p.Kind {
	case PolicyAlways:
		return Always(), nil
	case PolicyNever:
		return Never(), nil
	case PolicyRatio:
		return NewTraceIDRatio(p.Ratio)
	case PolicyParentRatio:
		root, err := NewTraceIDRatio(p.Ratio)
		if err != nil {
			return nil, err
		}
		return NewParentBased(root)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidPolicy, p.Kind)
	}
}
