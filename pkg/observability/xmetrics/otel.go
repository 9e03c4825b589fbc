package xmetrics

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
)

const (
	defaultInstrumentationName = "github.com/sokolovgit/code-hive-sub000/xmetrics"
	unknownComponent           = "unknown"
	unknownOperation           = "unknown"

	metricOperationTotal    = "operation.total"
	metricOperationDuration = "operation.duration"
)

var (
	// ErrCreateCounter 创建计数器失败
	ErrCreateCounter = errors.New("xmetrics: create counter failed")
	// ErrCreateHistogram 创建直方图失败
	ErrCreateHistogram = errors.New("xmetrics: create histogram failed")
	// ErrInvalidBuckets 桶边界不是严格递增
	ErrInvalidBuckets = errors.New("xmetrics: invalid histogram buckets")
)

type otelConfig struct {
	instrumentationName string
	namespace           string
	meterProvider       metric.MeterProvider
	buckets             []float64
}

// Option 定义 OTel Observer 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithNamespace 为指标名称加前缀，如 "users" → users.operation.total。
func WithNamespace(ns string) Option {
	return func(cfg *otelConfig) { cfg.namespace = ns }
}

// WithMeterProvider 设置 MeterProvider，nil 时使用全局 MeterProvider。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithBuckets 设置耗时直方图的桶边界（秒），必须严格递增。
func WithBuckets(bounds ...float64) Option {
	return func(cfg *otelConfig) { cfg.buckets = bounds }
}

// NewOTelObserver 创建基于 OpenTelemetry Meter 的 Observer。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if err := validateBuckets(cfg.buckets); err != nil {
		return nil, err
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	total, err := meter.Int64Counter(
		metricName(cfg.namespace, metricOperationTotal),
		metric.WithDescription("total operations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}

	histOpts := []metric.Float64HistogramOption{
		metric.WithDescription("operation duration"),
		metric.WithUnit("s"),
	}
	if len(cfg.buckets) > 0 {
		histOpts = append(histOpts, metric.WithExplicitBucketBoundaries(cfg.buckets...))
	}
	duration, err := meter.Float64Histogram(metricName(cfg.namespace, metricOperationDuration), histOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}

	return &otelObserver{total: total, duration: duration}, nil
}

func metricName(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "." + name
}

func validateBuckets(bounds []float64) error {
	for i := 1; i < len(bounds); i++ {
		if bounds[i] <= bounds[i-1] {
			return fmt.Errorf("%w: %v", ErrInvalidBuckets, bounds)
		}
	}
	return nil
}

type otelObserver struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

// Start 开始一次测量。
func (o *otelObserver) Start(ctx context.Context, opts Options) Measurement {
	if ctx == nil {
		ctx = context.Background()
	}
	component := opts.Component
	if component == "" {
		component = xctx.ComponentOf(ctx).String()
	}
	if component == "" {
		component = unknownComponent
	}
	operation := opts.Operation
	if operation == "" {
		operation = unknownOperation
	}
	return &otelMeasurement{
		observer:  o,
		ctx:       ctx,
		component: component,
		operation: operation,
		attrs:     slices.Clone(opts.Attrs),
		start:     time.Now(),
	}
}

type otelMeasurement struct {
	observer  *otelObserver
	ctx       context.Context
	component string
	operation string
	attrs     []Attr
	start     time.Time
	endOnce   sync.Once
}

// End 结束测量并记录结果，幂等。
func (m *otelMeasurement) End(result Result) {
	if m == nil {
		return
	}
	m.endOnce.Do(func() {
		// 请求 context 可能已取消，记录指标时剥离取消信号。
		ctx := context.WithoutCancel(m.ctx)
		elapsed := time.Since(m.start).Seconds()
		if result.Operation != "" {
			m.operation = result.Operation
		}
		set := attribute.NewSet(m.metricAttrs(resolveStatus(result), result.Attrs)...)
		m.observer.total.Add(ctx, 1, metric.WithAttributeSet(set))
		m.observer.duration.Record(ctx, elapsed, metric.WithAttributeSet(set))
	})
}

func (m *otelMeasurement) metricAttrs(status Status, extra []Attr) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3+len(m.attrs)+len(extra))
	attrs = append(attrs,
		attribute.String("component", m.component),
		attribute.String("operation", m.operation),
		attribute.String("status", string(status)),
	)
	attrs = appendValid(attrs, m.attrs)
	return appendValid(attrs, extra)
}

// appendValid 跳过空 key 或未赋值的属性，避免污染属性集。
func appendValid(dst, attrs []Attr) []attribute.KeyValue {
	for _, kv := range attrs {
		if kv.Valid() {
			dst = append(dst, kv)
		}
	}
	return dst
}
