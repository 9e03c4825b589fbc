package xinbound

import (
	"context"
	"strings"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xmetrics"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xtrace"
)

// 上游网关写入的身份头
const (
	HeaderUserID   = "x-user-id"
	HeaderUserRole = "x-user-role"
)

// IdentityFunc 从入站元数据读取上游已认证的身份，不做任何认证。
type IdentityFunc func(get xtrace.Getter) xctx.Identity

// HeaderIdentity 读取 x-user-id / x-user-role。
func HeaderIdentity(get xtrace.Getter) xctx.Identity {
	return xctx.Identity{
		UserID:   strings.TrimSpace(get(HeaderUserID)),
		UserRole: strings.TrimSpace(get(HeaderUserRole)),
	}
}

// WSErrorFunc 处理 WebSocket 消息 handler 返回的错误。
type WSErrorFunc func(ctx context.Context, event, clientID string, err error)

type options struct {
	tracer      *xtrace.Tracer
	logger      xlog.Logger
	observer    xmetrics.Observer
	identity    IdentityFunc
	ignorePaths map[string]struct{}
	accessLog   bool
	wsOnError   WSErrorFunc
	wsReadLimit int64
	wsOrigin    func(origin string) bool
}

// Option 配置入站适配器
type Option func(*options)

func newOptions(opts []Option) *options {
	o := &options{
		identity:    HeaderIdentity,
		ignorePaths: map[string]struct{}{},
		accessLog:   true,
		wsReadLimit: defaultWSReadLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithTracer 为每个入站请求打开 server span。
func WithTracer(t *xtrace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithLogger 设置访问日志与 WebSocket 默认错误日志使用的 logger，nil 时使用 xlog.Default()。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver 记录每个请求的计数与耗时。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithIdentity 替换身份读取方式，nil 表示不读取身份。
func WithIdentity(fn IdentityFunc) Option {
	return func(o *options) { o.identity = fn }
}

// WithIgnorePaths 对这些路径（精确匹配）不创建 span、不写访问日志，requestId 照常分配。
func WithIgnorePaths(paths ...string) Option {
	return func(o *options) {
		for _, p := range paths {
			if p = strings.TrimSpace(p); p != "" {
				o.ignorePaths[p] = struct{}{}
			}
		}
	}
}

// WithAccessLog 开关 HTTP 访问日志，默认开启。
func WithAccessLog(enable bool) Option {
	return func(o *options) { o.accessLog = enable }
}

// WithWSErrorHandler 设置 WebSocket 消息错误的处理方式，默认记 error 日志。
func WithWSErrorHandler(fn WSErrorFunc) Option {
	return func(o *options) { o.wsOnError = fn }
}

// WithWSReadLimit 设置单条 WebSocket 消息的最大字节数。
func WithWSReadLimit(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.wsReadLimit = n
		}
	}
}

// WithWSOriginCheck 设置握手时的 Origin 校验，默认只允许同源。
func WithWSOriginCheck(fn func(origin string) bool) Option {
	return func(o *options) { o.wsOrigin = fn }
}

func (o *options) log() xlog.Logger {
	if o.logger == nil {
		return xlog.Default()
	}
	return o.logger
}

func (o *options) ignored(path string) bool {
	_, ok := o.ignorePaths[path]
	return ok
}

// newCorrelation 由入站元数据构造关联上下文初值，requestId 缺失时生成。
func (o *options) newCorrelation(get xtrace.Getter, comp xctx.Component) xctx.Correlation {
	c := xtrace.Extract(get).Correlation()
	if c.RequestID == "" {
		c.RequestID = xctx.GenerateRequestID()
	}
	if c.CorrelationID == "" {
		c.CorrelationID = c.RequestID
	}
	c.Component = comp
	if o.identity != nil {
		id := o.identity(get)
		c.UserID = id.UserID
		c.UserRole = id.UserRole
	}
	return c
}

// responseIDs 返回要回写的 requestId、traceId、spanId。
// spanId 只取本服务的 server span；没有时留空，不回显调用方的 span。
func responseIDs(ctx context.Context) (requestID, traceID, spanID string) {
	c := xctx.GetAll(ctx)
	if span := xtrace.ActiveSpan(ctx); span != nil {
		spanID = span.SpanContext().SpanID().String()
	}
	return c.RequestID, c.TraceID, spanID
}
