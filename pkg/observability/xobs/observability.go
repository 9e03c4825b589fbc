package xobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xinbound"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xmetrics"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xotel"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xreport"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xsampling"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xtrace"
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("xobs: invalid config")

type options struct {
	output     io.Writer
	exporter   xotel.Exporter
	setGlobal  bool
	attributes []attribute.KeyValue
}

// Option 构造选项，主要用于测试与嵌入。
type Option func(*options)

// WithLogOutput 覆盖日志输出。设置后忽略 LogFile。
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithExporter 覆盖由配置推导的导出目标。
func WithExporter(exp xotel.Exporter) Option {
	return func(o *options) { o.exporter = exp }
}

// WithSetGlobal 安装为全局 TracerProvider/MeterProvider/Propagator。
func WithSetGlobal(enable bool) Option {
	return func(o *options) { o.setGlobal = enable }
}

// WithResourceAttributes 附加资源属性。
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) { o.attributes = append(o.attributes, attrs...) }
}

// Observability 一个服务进程的可观测性组件集合。
type Observability struct {
	cfg      Config
	pipeline *xotel.Pipeline
	tracer   *xtrace.Tracer
	logger   xlog.LoggerWithLevel
	reporter *xreport.Reporter
	observer xmetrics.Observer

	closeLog     func() error
	shutdownOnce sync.Once
	shutdownErr  error
}

// New 按配置组装可观测性组件。
//
// 失败时已创建的组件会被关闭，调用方无需清理。
func New(ctx context.Context, cfg Config, opts ...Option) (*Observability, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	policy, err := xsampling.ParsePolicy(cfg.Sampler)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	exp := o.exporter
	if exp == nil {
		exp = cfg.exporter()
	}

	pipeline, err := xotel.New(ctx, xotel.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		Exporter:       exp,
		Sampler:        policy,
		Batch:          cfg.Batch.otel(),
		ExportBreaker:  cfg.ExportBreaker.otel(),
		MetricInterval: cfg.MetricInterval,
		Attributes:     o.attributes,
		SetGlobal:      o.setGlobal,
	})
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := buildLogger(cfg, o.output)
	if err != nil {
		_ = pipeline.Shutdown(ctx)
		return nil, err
	}

	observer, err := xmetrics.NewOTelObserver(
		xmetrics.WithMeterProvider(pipeline.MeterProvider()),
		xmetrics.WithInstrumentationName(cfg.ServiceName),
	)
	if err != nil {
		_ = pipeline.Shutdown(ctx)
		_ = closeLog()
		return nil, err
	}

	return &Observability{
		cfg:      cfg,
		pipeline: pipeline,
		tracer:   xtrace.NewTracer(pipeline.TracerProvider(), xtrace.WithInstrumentationName(cfg.ServiceName)),
		logger:   logger,
		reporter: xreport.New(xreport.WithLogger(logger)),
		observer: observer,
		closeLog: closeLog,
	}, nil
}

func buildLogger(cfg Config, output io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetFormat(cfg.Format).
		SetLevelString(cfg.Level).
		SetInfra(xlog.NewInfra(cfg.Environment, cfg.ServiceName, cfg.ServiceVersion)).
		SetCallerInference(cfg.CallerInference).
		SetOnError(func(err error) {
			fmt.Fprintf(os.Stderr, "xobs: log write failed: %v\n", err)
		})
	if len(cfg.Redact) > 0 {
		b.AddRedactKeys(cfg.Redact...)
	}
	switch {
	case output != nil:
		b.SetOutput(output)
	case cfg.LogFile.Path != "":
		b.SetRotation(cfg.LogFile.Path, cfg.LogFile.Options()...)
	default:
		b.SetOutput(os.Stdout)
	}
	if cfg.AsyncBuffer > 0 {
		b.SetAsync(cfg.AsyncBuffer)
	}
	return b.Build()
}

// Config 返回补全默认值后的配置
func (o *Observability) Config() Config { return o.cfg }

// Logger 返回日志器
func (o *Observability) Logger() xlog.LoggerWithLevel { return o.logger }

// Tracer 返回追踪管理器
func (o *Observability) Tracer() *xtrace.Tracer { return o.tracer }

// Reporter 返回错误上报器
func (o *Observability) Reporter() *xreport.Reporter { return o.reporter }

// Observer 返回指标观测器
func (o *Observability) Observer() xmetrics.Observer { return o.observer }

// Pipeline 返回导出管线
func (o *Observability) Pipeline() *xotel.Pipeline { return o.pipeline }

// SetLevel 运行时调整日志级别，用于配置热更新。
func (o *Observability) SetLevel(level string) error {
	l, err := xlog.ParseLevel(level)
	if err != nil {
		return err
	}
	o.logger.SetLevel(l)
	return nil
}

func (o *Observability) inboundOptions(extra []xinbound.Option) []xinbound.Option {
	opts := []xinbound.Option{
		xinbound.WithTracer(o.tracer),
		xinbound.WithLogger(o.logger),
		xinbound.WithObserver(o.observer),
		xinbound.WithIgnorePaths(o.cfg.IgnorePaths...),
		xinbound.WithAccessLog(!o.cfg.DisableAccessLog),
		xinbound.WithWSErrorHandler(o.reporter.WS),
	}
	return append(opts, extra...)
}

// HTTPMiddleware 返回 HTTP 入口中间件。
//
// 入站初始化在外层，panic 恢复在内层：恢复后的错误响应仍带有请求的关联字段与 span。
func (o *Observability) HTTPMiddleware(extra ...xinbound.Option) func(http.Handler) http.Handler {
	inbound := xinbound.Middleware(o.inboundOptions(extra)...)
	return func(next http.Handler) http.Handler {
		return inbound(o.reporter.RecoverHTTP(next))
	}
}

// UnaryServerInterceptor 组合入站初始化与错误上报。
func (o *Observability) UnaryServerInterceptor(extra ...xinbound.Option) grpc.UnaryServerInterceptor {
	inbound := xinbound.UnaryServerInterceptor(o.inboundOptions(extra)...)
	report := o.reporter.UnaryServerInterceptor()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return inbound(ctx, req, info, func(ctx context.Context, req any) (any, error) {
			return report(ctx, req, info, handler)
		})
	}
}

// StreamServerInterceptor 组合入站初始化与错误上报。
func (o *Observability) StreamServerInterceptor(extra ...xinbound.Option) grpc.StreamServerInterceptor {
	inbound := xinbound.StreamServerInterceptor(o.inboundOptions(extra)...)
	report := o.reporter.StreamServerInterceptor()
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return inbound(srv, ss, info, func(srv any, ss grpc.ServerStream) error {
			return report(srv, ss, info, handler)
		})
	}
}

// ServerOptions 返回挂载拦截器的 grpc.ServerOption。
func (o *Observability) ServerOptions(extra ...xinbound.Option) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(o.UnaryServerInterceptor(extra...)),
		grpc.ChainStreamInterceptor(o.StreamServerInterceptor(extra...)),
	}
}

// WSHandler 返回 WebSocket 入口，handler 的错误默认交给 Reporter.WS。
func (o *Observability) WSHandler(handle xinbound.WSHandlerFunc, extra ...xinbound.Option) http.Handler {
	return xinbound.NewWSHandler(handle, o.inboundOptions(extra)...)
}

// Shutdown 先关闭导出管线，再关闭日志输出；幂等。
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	o.shutdownOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		var errs []error
		if err := o.pipeline.Shutdown(ctx); err != nil {
			o.logger.Error(ctx, "otel pipeline shutdown failed", xlog.Err(err))
			errs = append(errs, err)
		}
		if o.closeLog != nil {
			errs = append(errs, o.closeLog())
		}
		o.shutdownErr = errors.Join(errs...)
	})
	return o.shutdownErr
}
