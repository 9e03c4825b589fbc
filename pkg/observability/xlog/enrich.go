package xlog

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/trace"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
)

// ErrNilHandler 当 NewEnrichHandler 的 base handler 为 nil 时返回
var ErrNilHandler = errors.New("xlog: base handler is nil")

// EnrichOption 配置 EnrichHandler
type EnrichOption func(*enrichConfig)

type enrichConfig struct {
	infra          []slog.Attr
	withContext    bool
	redactor       *Redactor
	inferCaller    bool
	callerSkipPkgs []string
}

// WithInfra 为每条记录附加进程级元数据（合并优先级最低）。
func WithInfra(infra Infra) EnrichOption {
	return func(c *enrichConfig) { c.infra = infra.Attrs() }
}

// WithContextFields 是否注入 xctx 关联字段，默认开启。
func WithContextFields(enable bool) EnrichOption {
	return func(c *enrichConfig) { c.withContext = enable }
}

// WithRedactor 设置脱敏器，nil 表示不脱敏。
func WithRedactor(r *Redactor) EnrichOption {
	return func(c *enrichConfig) { c.redactor = r }
}

// WithCallerInference 开启调用方推断。skipPkgs 为额外跳过的函数名前缀。
func WithCallerInference(enable bool, skipPkgs ...string) EnrichOption {
	return func(c *enrichConfig) {
		c.inferCaller = enable
		c.callerSkipPkgs = skipPkgs
	}
}

// groupOrAttrs 记录 WithGroup/WithAttrs 的调用顺序
type groupOrAttrs struct {
	group string
	attrs []slog.Attr
}

// EnrichHandler 在写出前合并、整理每条记录的属性。
//
// 处理顺序：
//  1. 合并（后者覆盖前者）：基础设施字段 → xctx 关联字段 → With 属性与记录属性
//     → error 级别及以上时展开的错误字段
//  2. component 为 http 时移除 service/method
//  3. 可选的调用方推断（仅在 service 与 method 均未知时）
//  4. 最后脱敏
//
// WithAttrs/WithGroup 不下沉到 base handler，以便所有属性都经过上述流程；
// 因此关联字段与基础设施字段始终位于顶层。
type EnrichHandler struct {
	base slog.Handler
	cfg  *enrichConfig
	goas []groupOrAttrs
}

// NewEnrichHandler 创建 EnrichHandler
func NewEnrichHandler(base slog.Handler, opts ...EnrichOption) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	cfg := &enrichConfig{withContext: true}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return &EnrichHandler{base: base, cfg: cfg}, nil
}

// Enabled 委托给底层 handler，低于阈值的记录在格式化前被拒绝。
func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle 按固定顺序整理属性后交给底层 handler。
//
// 根据 slog 契约不修改传入的 record，而是构造新 record。
// ctx 为 nil 时不注入关联字段。
func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := newFieldSet(len(h.cfg.infra) + 12 + r.NumAttrs())
	fields.add(h.cfg.infra...)

	if h.cfg.withContext && ctx != nil {
		fields.add(xctx.AppendAttrs(nil, ctx)...)
		addSpanFallback(ctx, fields)
	}

	fields.add(h.callerAttrs(r)...)
	flattenErrors(fields, r.Level >= slog.LevelError)

	isHTTP := ctx != nil && xctx.ComponentOf(ctx) == xctx.ComponentHTTP
	if isHTTP {
		fields.remove(xctx.KeyService, xctx.KeyMethod)
	} else if h.cfg.inferCaller && !fields.has(xctx.KeyService) && !fields.has(xctx.KeyMethod) {
		// Callers → inferCaller → Handle → 日志方法链
		if service, method := inferCaller(3, h.cfg.callerSkipPkgs); method != "" {
			fields.add(slog.String(xctx.KeyService, service), slog.String(xctx.KeyMethod, method))
		}
	}

	attrs := fields.list()
	if h.cfg.redactor != nil {
		attrs = h.cfg.redactor.Redact(attrs)
	}

	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(attrs...)
	return h.base.Handle(ctx, out)
}

// callerAttrs 将 WithAttrs/WithGroup 链与记录属性组合为顶层属性列表。
func (h *EnrichHandler) callerAttrs(r slog.Record) []slog.Attr {
	cur := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		cur = append(cur, a)
		return true
	})
	for i := len(h.goas) - 1; i >= 0; i-- {
		goa := h.goas[i]
		if goa.group != "" {
			if len(cur) == 0 {
				continue
			}
			cur = []slog.Attr{{Key: goa.group, Value: slog.GroupValue(cur...)}}
			continue
		}
		cur = append(slices.Clip(goa.attrs), cur...)
	}
	return cur
}

// addSpanFallback 关联上下文缺少 traceId/spanId 时，回退到 ctx 中的 OTel span。
func addSpanFallback(ctx context.Context, fields *fieldSet) {
	if fields.has(xctx.KeyTraceID) && fields.has(xctx.KeySpanID) {
		return
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	if !fields.has(xctx.KeyTraceID) {
		fields.add(slog.String(xctx.KeyTraceID, sc.TraceID().String()))
	}
	if !fields.has(xctx.KeySpanID) {
		fields.add(slog.String(xctx.KeySpanID, sc.SpanID().String()))
	}
}

// WithAttrs 返回带额外属性的新 handler
func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.with(groupOrAttrs{attrs: slices.Clone(attrs)})
}

// WithGroup 返回带分组的新 handler
func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(groupOrAttrs{group: name})
}

func (h *EnrichHandler) with(goa groupOrAttrs) *EnrichHandler {
	goas := make([]groupOrAttrs, len(h.goas), len(h.goas)+1)
	copy(goas, h.goas)
	return &EnrichHandler{base: h.base, cfg: h.cfg, goas: append(goas, goa)}
}
