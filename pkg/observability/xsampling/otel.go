package xsampling

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// traceIDRatioSampler 将 KeyBasedSampler 的 xxhash 决策适配为 OTel Sampler。
//
// 与 sdktrace.TraceIDRatioBased 不同，决策基于 traceId 十六进制串的 xxhash，
// 与 KeyBasedSampler.ShouldSample 在同一 traceId 上结果一致。
type traceIDRatioSampler struct {
	inner *KeyBasedSampler
	desc  string
}

func (s *traceIDRatioSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	psc := trace.SpanContextFromContext(p.ParentContext)
	decision := sdktrace.Drop
	if s.inner.SampleKey(p.TraceID.String()) {
		decision = sdktrace.RecordAndSample
	}
	return sdktrace.SamplingResult{
		Decision:   decision,
		Tracestate: psc.TraceState(),
	}
}

func (s *traceIDRatioSampler) Description() string {
	return s.desc
}

// OTelTraceIDRatio 返回按 traceId xxhash 比率采样的 OTel Sampler。
func OTelTraceIDRatio(rate float64) (sdktrace.Sampler, error) {
	inner, err := NewTraceIDRatio(rate)
	if err != nil {
		return nil, err
	}
	return &traceIDRatioSampler{
		inner: inner,
		desc:  fmt.Sprintf("XXHashTraceIDRatio{%g}", rate),
	}, nil
}

// OTel 返回与策略对应的 OTel SDK Sampler。
//
// PolicyParentRatio 使用 sdktrace.ParentBased 包装，非根 span 沿用父级决策，
// 同一条链路上的所有 span 共享根 span 的采样结果。
func (p Policy) OTel() (sdktrace.Sampler, error) {
	switch p.Kind {
	case PolicyAlways:
		return sdktrace.AlwaysSample(), nil
	case PolicyNever:
		return sdktrace.NeverSample(), nil
	case PolicyRatio:
		return OTelTraceIDRatio(p.Ratio)
	case PolicyParentRatio:
		root, err := OTelTraceIDRatio(p.Ratio)
		if err != nil {
			return nil, err
		}
		return sdktrace.ParentBased(root), nil
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrInvalidPolicy, p.Kind)
	}
}
