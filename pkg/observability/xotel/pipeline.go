package xotel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xsampling"
)

// 错误定义
var (
	// ErrMissingServiceName 未配置服务名
	ErrMissingServiceName = errors.New("xotel: service name is required")
	// ErrExporter 导出器创建失败
	ErrExporter = errors.New("xotel: create exporter failed")
	// ErrInvalidBatch 批处理参数无效
	ErrInvalidBatch = errors.New("xotel: invalid batch settings")
)

// Batch 批处理导出参数，零值字段使用 SDK 默认值。
type Batch struct {
	MaxQueueSize       int
	MaxExportBatchSize int
	BatchTimeout       time.Duration
	ExportTimeout      time.Duration
}

// Validate 校验批处理参数
func (b Batch) Validate() error {
	if b.MaxQueueSize < 0 || b.MaxExportBatchSize < 0 || b.BatchTimeout < 0 || b.ExportTimeout < 0 {
		return fmt.Errorf("%w: negative value", ErrInvalidBatch)
	}
	if b.MaxQueueSize > 0 && b.MaxExportBatchSize > b.MaxQueueSize {
		return fmt.Errorf("%w: max export batch size %d exceeds queue size %d",
			ErrInvalidBatch, b.MaxExportBatchSize, b.MaxQueueSize)
	}
	return nil
}

func (b Batch) options() []sdktrace.BatchSpanProcessorOption {
	var opts []sdktrace.BatchSpanProcessorOption
	if b.MaxQueueSize > 0 {
		opts = append(opts, sdktrace.WithMaxQueueSize(b.MaxQueueSize))
	}
	if b.MaxExportBatchSize > 0 {
		opts = append(opts, sdktrace.WithMaxExportBatchSize(b.MaxExportBatchSize))
	}
	if b.BatchTimeout > 0 {
		opts = append(opts, sdktrace.WithBatchTimeout(b.BatchTimeout))
	}
	if b.ExportTimeout > 0 {
		opts = append(opts, sdktrace.WithExportTimeout(b.ExportTimeout))
	}
	return opts
}

// Config 导出管线配置
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Exporter 导出目标，nil 等价于 NoExporter{}
	Exporter Exporter

	// Sampler 采样策略，零值为 always
	Sampler xsampling.Policy

	Batch Batch

	// ExportBreaker 远端 span 导出的熔断参数，只作用于批处理导出
	ExportBreaker Breaker

	// MetricInterval 周期性指标导出间隔，0 使用 SDK 默认值（60s）
	MetricInterval time.Duration

	// Attributes 附加的资源属性
	Attributes []attribute.KeyValue

	// SetGlobal 是否安装为全局 TracerProvider/MeterProvider/Propagator
	SetGlobal bool
}

// Pipeline 显式的 span/指标导出管线。
//
// 由 New 创建，由 Shutdown 关闭；不依赖进程级单例。
type Pipeline struct {
	tp         *sdktrace.TracerProvider
	mp         *sdkmetric.MeterProvider
	propagator propagation.TextMapPropagator
	resource   *resource.Resource
	exporter   string
	breaker    bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New 创建导出管线。
func New(ctx context.Context, cfg Config) (*Pipeline, error) {
	if cfg.ServiceName == "" {
		return nil, ErrMissingServiceName
	}
	if err := cfg.Batch.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ExportBreaker.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	exp := cfg.Exporter
	if exp == nil {
		exp = NoExporter{}
	}

	sampler, err := cfg.Sampler.OTel()
	if err != nil {
		return nil, fmt.Errorf("xotel: sampler: %w", err)
	}

	res := newResource(cfg)

	set, err := exp.build(ctx, cfg.MetricInterval)
	if err != nil {
		return nil, err
	}

	breaker := set.spans != nil && !set.sync && cfg.ExportBreaker.Failures > 0
	if breaker {
		set.spans = newBreakerExporter(exp.Name(), set.spans, cfg.ExportBreaker)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}
	if set.spans != nil {
		if set.sync {
			tpOpts = append(tpOpts, sdktrace.WithSyncer(set.spans))
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(set.spans, cfg.Batch.options()...))
		}
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if set.reader != nil {
		mpOpts = append(mpOpts, sdkmetric.WithReader(set.reader))
	}

	p := &Pipeline{
		tp: sdktrace.NewTracerProvider(tpOpts...),
		mp: sdkmetric.NewMeterProvider(mpOpts...),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		resource: res,
		exporter: exp.Name(),
		breaker:  breaker,
	}

	if cfg.SetGlobal {
		otel.SetTracerProvider(p.tp)
		otel.SetMeterProvider(p.mp)
		otel.SetTextMapPropagator(p.propagator)
	}
	return p, nil
}

func newResource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.HostName(hostname()),
		semconv.ProcessPID(os.Getpid()),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(cfg.Environment))
	}
	attrs = append(attrs, cfg.Attributes...)
	return resource.NewSchemaless(attrs...)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}

// TracerProvider 返回 TracerProvider；p 为 nil 时返回 noop 实现。
func (p *Pipeline) TracerProvider() trace.TracerProvider {
	if p == nil || p.tp == nil {
		return otel.GetTracerProvider()
	}
	return p.tp
}

// MeterProvider 返回 MeterProvider；p 为 nil 时返回 noop 实现。
func (p *Pipeline) MeterProvider() metric.MeterProvider {
	if p == nil || p.mp == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.mp
}

// Tracer 返回指定 instrumentation 名称的 Tracer
func (p *Pipeline) Tracer(name string) trace.Tracer {
	return p.TracerProvider().Tracer(name)
}

// Meter 返回指定 instrumentation 名称的 Meter
func (p *Pipeline) Meter(name string) metric.Meter {
	return p.MeterProvider().Meter(name)
}

// Propagator 返回 W3C TraceContext + Baggage 传播器
func (p *Pipeline) Propagator() propagation.TextMapPropagator {
	if p == nil || p.propagator == nil {
		return propagation.TraceContext{}
	}
	return p.propagator
}

// Resource 返回描述本进程的资源
func (p *Pipeline) Resource() *resource.Resource {
	if p == nil {
		return resource.Empty()
	}
	return p.resource
}

// ExporterName 返回导出目标名称
func (p *Pipeline) ExporterName() string {
	if p == nil {
		return ""
	}
	return p.exporter
}

// ForceFlush 立即导出缓冲中的 span 与指标
func (p *Pipeline) ForceFlush(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return errors.Join(p.tp.ForceFlush(ctx), p.mp.ForceFlush(ctx))
}

// Shutdown 刷新并关闭 span 与指标管线。
//
// 幂等：只有第一次调用真正执行关闭，之后的调用返回第一次的结果。
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.shutdownOnce.Do(func() {
		p.shutdownErr = errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
	})
	return p.shutdownErr
}
