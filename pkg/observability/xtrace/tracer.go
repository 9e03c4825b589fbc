package xtrace

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
)

const (
	defaultInstrumentationName = "github.com/sokolovgit/code-hive-sub000/xtrace"

	// unnamedSpan 空名称的替代值
	unnamedSpan = "unnamed"
)

// =============================================================================
// Tracer
// =============================================================================

// Tracer 创建 span 并保持关联上下文中的 traceId/spanId 与当前 span 一致。
//
// 零值与 nil 均可用：此时使用 noop tracer，work 照常执行。
type Tracer struct {
	tracer trace.Tracer
}

// TracerOption 配置 Tracer
type TracerOption func(*tracerConfig)

type tracerConfig struct {
	instrumentationName string
}

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) TracerOption {
	return func(cfg *tracerConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// NewTracer 基于 TracerProvider 创建 Tracer，tp 为 nil 时使用 noop 实现。
func NewTracer(tp trace.TracerProvider, opts ...TracerOption) *Tracer {
	cfg := &tracerConfig{instrumentationName: defaultInstrumentationName}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Tracer{tracer: tp.Tracer(cfg.instrumentationName)}
}

func (t *Tracer) otel() trace.Tracer {
	if t == nil || t.tracer == nil {
		return noop.NewTracerProvider().Tracer(defaultInstrumentationName)
	}
	return t.tracer
}

// =============================================================================
// Span 选项
// =============================================================================

// Kind span 类型
type Kind = trace.SpanKind

// span 类型常量
const (
	KindInternal = trace.SpanKindInternal
	KindServer   = trace.SpanKindServer
	KindClient   = trace.SpanKindClient
	KindProducer = trace.SpanKindProducer
	KindConsumer = trace.SpanKindConsumer
)

// Link 指向另一条链路中的 span。
type Link struct {
	TraceID string
	SpanID  string
	Attrs   []attribute.KeyValue
}

// SpanOption 配置单个 span
type SpanOption func(*spanConfig)

type spanConfig struct {
	kind  Kind
	attrs []attribute.KeyValue
	links []trace.Link
}

// WithKind 设置 span 类型，默认 KindInternal。
func WithKind(kind Kind) SpanOption {
	return func(c *spanConfig) { c.kind = kind }
}

// WithAttributes 追加静态属性。
func WithAttributes(attrs ...attribute.KeyValue) SpanOption {
	return func(c *spanConfig) { c.attrs = append(c.attrs, attrs...) }
}

// WithLinks 追加 span 链接，格式无效的链接被忽略。
func WithLinks(links ...Link) SpanOption {
	return func(c *spanConfig) {
		for _, l := range links {
			tid, err := trace.TraceIDFromHex(l.TraceID)
			if err != nil {
				continue
			}
			sid, err := trace.SpanIDFromHex(l.SpanID)
			if err != nil {
				continue
			}
			c.links = append(c.links, trace.Link{
				SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
					TraceID: tid,
					SpanID:  sid,
					Remote:  true,
				}),
				Attributes: l.Attrs,
			})
		}
	}
}

// =============================================================================
// StartSpan
// =============================================================================

// Start 在新 span 中执行 work，返回 work 的错误（原样）。
//
// 见 Do。
func (t *Tracer) Start(ctx context.Context, name string, work func(ctx context.Context) error, opts ...SpanOption) error {
	_, err := Do(ctx, t, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, work(ctx)
	}, opts...)
	return err
}

// Do 在新 span 中执行 work 并返回其结果。
//
//   - 当前有活跃 span（或关联上下文中带有远端 traceId/spanId）时新 span 为其子级，否则为根；
//   - work 执行期间关联上下文（派生副本）中的 traceId/spanId/parentSpanId 指向新 span；
//   - work 成功时状态为 Ok；返回错误时 RecordError 并置为 Error；
//   - 无论成功、失败还是 panic，span 都恰好结束一次；panic 会在结束 span 后继续向上传播。
func Do[T any](ctx context.Context, t *Tracer, name string, work func(ctx context.Context) (T, error), opts ...SpanOption) (result T, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := t.begin(ctx, name, opts)

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("panic: %v", r)
			span.RecordError(perr, trace.WithStackTrace(true))
			span.SetStatus(codes.Error, perr.Error())
			span.End()
			panic(r)
		}
		finish(span, err)
	}()

	return work(ctx)
}

func (t *Tracer) begin(ctx context.Context, name string, opts []SpanOption) (context.Context, trace.Span) {
	if name == "" {
		name = unnamedSpan
	}
	cfg := &spanConfig{kind: KindInternal}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	ctx = ensureParentSpan(ctx)
	parent := trace.SpanContextFromContext(ctx)

	startOpts := []trace.SpanStartOption{trace.WithSpanKind(cfg.kind)}
	if len(cfg.attrs) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(cfg.attrs...))
	}
	if len(cfg.links) > 0 {
		startOpts = append(startOpts, trace.WithLinks(cfg.links...))
	}
	ctx, span := t.otel().Start(ctx, name, startOpts...)

	return syncCorrelation(ctx, span.SpanContext(), parent), span
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ensureParentSpan 在没有活跃 OTel span 时，用关联上下文中的 traceId/spanId
// 构造远端父级 SpanContext，使入站链路延续上游 trace。
func ensureParentSpan(ctx context.Context) context.Context {
	if trace.SpanContextFromContext(ctx).IsValid() {
		return ctx
	}
	c := xctx.GetAll(ctx)
	if c.TraceID == "" || c.SpanID == "" {
		return ctx
	}
	traceID, err := trace.TraceIDFromHex(c.TraceID)
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(c.SpanID)
	if err != nil {
		return ctx
	}
	var flags trace.TraceFlags
	if c.TraceFlags != "" {
		if parsed, err := strconv.ParseUint(c.TraceFlags, 16, 8); err == nil {
			flags = trace.TraceFlags(parsed)
		}
	}
	return trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}))
}

// syncCorrelation 派生关联上下文副本，并写入新 span 的标识。
//
// 外层 Store 保持父 span 的标识不变；没有活跃 Store 时原样返回。
func syncCorrelation(ctx context.Context, sc, parent trace.SpanContext) context.Context {
	if !sc.IsValid() {
		return ctx
	}
	forked, ok := xctx.Fork(ctx)
	if !ok {
		return ctx
	}
	xctx.Update(forked, func(c *xctx.Correlation) {
		c.TraceID = sc.TraceID().String()
		c.SpanID = sc.SpanID().String()
		c.TraceFlags = sc.TraceFlags().String()
		if parent.IsValid() {
			c.ParentSpanID = parent.SpanID().String()
		} else {
			c.ParentSpanID = ""
		}
	})
	return forked
}

// =============================================================================
// 只读访问
// =============================================================================

// ActiveSpan 返回当前活跃 span，没有时返回 nil。
func ActiveSpan(ctx context.Context) trace.Span {
	if ctx == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

// TraceID 返回当前活跃 span 的 traceId，没有时返回空字符串。
func TraceID(ctx context.Context) string {
	if sc := spanContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// SpanID 返回当前活跃 span 的 spanId，没有时返回空字符串。
func SpanID(ctx context.Context) string {
	if sc := spanContext(ctx); sc.IsValid() {
		return sc.SpanID().String()
	}
	return ""
}

func spanContext(ctx context.Context) trace.SpanContext {
	if ctx == nil {
		return trace.SpanContext{}
	}
	return trace.SpanContextFromContext(ctx)
}
