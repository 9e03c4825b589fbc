package xotel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Exporter 导出目标。实现类型：OTLPGRPC、OTLPHTTP、NoExporter、InMemory。
type Exporter interface {
	// Name 返回导出目标的短名称，用于日志与错误信息
	Name() string

	build(ctx context.Context, metricInterval time.Duration) (exporterSet, error)
}

// exporterSet 由 Exporter 构造出的 span 与 metric 导出组件，均可为 nil
type exporterSet struct {
	spans  sdktrace.SpanExporter
	sync   bool // true 时使用 WithSyncer 而非批处理
	reader sdkmetric.Reader
}

// OTLPGRPC 通过 OTLP/gRPC 导出（默认端口 4317）
type OTLPGRPC struct {
	Endpoint string
	Insecure bool
	Headers  map[string]string
}

// Name 实现 Exporter
func (OTLPGRPC) Name() string { return "otlp-grpc" }

func (e OTLPGRPC) build(ctx context.Context, metricInterval time.Duration) (exporterSet, error) {
	traceOpts := []otlptracegrpc.Option{}
	metricOpts := []otlpmetricgrpc.Option{}
	if e.Endpoint != "" {
		traceOpts = append(traceOpts, otlptracegrpc.WithEndpoint(e.Endpoint))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithEndpoint(e.Endpoint))
	}
	if e.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	if len(e.Headers) > 0 {
		traceOpts = append(traceOpts, otlptracegrpc.WithHeaders(e.Headers))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithHeaders(e.Headers))
	}

	spans, err := otlptrace.New(ctx, otlptracegrpc.NewClient(traceOpts...))
	if err != nil {
		return exporterSet{}, fmt.Errorf("%w: otlp-grpc spans: %w", ErrExporter, err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return exporterSet{}, fmt.Errorf("%w: otlp-grpc metrics: %w", ErrExporter, err)
	}
	return exporterSet{spans: spans, reader: newPeriodicReader(metrics, metricInterval)}, nil
}

// OTLPHTTP 通过 OTLP/HTTP 导出（默认端口 4318）
type OTLPHTTP struct {
	Endpoint string
	Insecure bool
	// URLPath span 导出路径，默认 /v1/traces
	URLPath string
	Headers map[string]string
}

// Name 实现 Exporter
func (OTLPHTTP) Name() string { return "otlp-http" }

func (e OTLPHTTP) build(ctx context.Context, metricInterval time.Duration) (exporterSet, error) {
	traceOpts := []otlptracehttp.Option{}
	metricOpts := []otlpmetrichttp.Option{}
	if e.Endpoint != "" {
		traceOpts = append(traceOpts, otlptracehttp.WithEndpoint(e.Endpoint))
		metricOpts = append(metricOpts, otlpmetrichttp.WithEndpoint(e.Endpoint))
	}
	if e.Insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	if e.URLPath != "" {
		traceOpts = append(traceOpts, otlptracehttp.WithURLPath(e.URLPath))
	}
	if len(e.Headers) > 0 {
		traceOpts = append(traceOpts, otlptracehttp.WithHeaders(e.Headers))
		metricOpts = append(metricOpts, otlpmetrichttp.WithHeaders(e.Headers))
	}

	spans, err := otlptrace.New(ctx, otlptracehttp.NewClient(traceOpts...))
	if err != nil {
		return exporterSet{}, fmt.Errorf("%w: otlp-http spans: %w", ErrExporter, err)
	}
	metrics, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = spans.Shutdown(ctx)
		return exporterSet{}, fmt.Errorf("%w: otlp-http metrics: %w", ErrExporter, err)
	}
	return exporterSet{spans: spans, reader: newPeriodicReader(metrics, metricInterval)}, nil
}

// NoExporter 不导出：span 仍会创建（关联字段正常生成），但不离开进程。
type NoExporter struct{}

// Name 实现 Exporter
func (NoExporter) Name() string { return "none" }

func (NoExporter) build(context.Context, time.Duration) (exporterSet, error) {
	return exporterSet{}, nil
}

// InMemory 导出到内存，用于测试。Spans 同步写入；Reader 为 nil 时不采集指标。
type InMemory struct {
	Spans  *tracetest.InMemoryExporter
	Reader *sdkmetric.ManualReader
}

// Name 实现 Exporter
func (InMemory) Name() string { return "in-memory" }

func (e InMemory) build(context.Context, time.Duration) (exporterSet, error) {
	set := exporterSet{sync: true}
	if e.Spans != nil {
		set.spans = e.Spans
	}
	if e.Reader != nil {
		set.reader = e.Reader
	}
	return set, nil
}

func newPeriodicReader(exp sdkmetric.Exporter, interval time.Duration) sdkmetric.Reader {
	var opts []sdkmetric.PeriodicReaderOption
	if interval > 0 {
		opts = append(opts, sdkmetric.WithInterval(interval))
	}
	return sdkmetric.NewPeriodicReader(exp, opts...)
}
