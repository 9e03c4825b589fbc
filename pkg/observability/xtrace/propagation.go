package xtrace

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
)

// =============================================================================
// 传输层 Key 常量
// =============================================================================

// 入站识别的 Key（小写；HTTP Header 查找大小写不敏感）。
const (
	HeaderRequestID     = "x-request-id"
	HeaderCorrelationID = "x-correlation-id"

	HeaderTraceparent    = "traceparent"
	HeaderXTraceparent   = "x-traceparent"
	HeaderTracestate     = "tracestate"
	HeaderTraceID        = "x-trace-id"
	HeaderTraceIDAlt     = "x-traceid"
	HeaderSpanID         = "x-span-id"
	HeaderSpanIDAlt      = "x-spanid"
	HeaderParentSpanID   = "x-parent-span-id"
	HeaderParentSpanIDAl = "x-parent-spanid"
)

// =============================================================================
// TraceInfo
// =============================================================================

// TraceInfo 从入站元数据中提取的关联信息。
//
// SpanID 是上游调用方的 span；本服务入站 span 打开后它成为 parentSpanId。
type TraceInfo struct {
	RequestID     string
	CorrelationID string
	TraceID       string
	SpanID        string
	ParentSpanID  string
	TraceFlags    string
	Tracestate    string
}

// IsEmpty 判断是否没有提取到任何信息
func (t TraceInfo) IsEmpty() bool {
	return t == TraceInfo{}
}

// HasTrace 判断是否带有有效的 traceId。
func (t TraceInfo) HasTrace() bool {
	return t.TraceID != ""
}

// Getter 按 key 读取单个元数据值，不存在时返回空字符串。
type Getter func(key string) string

// Extract 按固定优先级从元数据中提取关联信息。
//
//   - requestId: x-request-id，其次 x-correlation-id
//   - 追踪: traceparent，其次 x-traceparent；均无效时回退到离散字段
//     x-trace-id/x-traceid、x-span-id/x-spanid、x-parent-span-id/x-parent-spanid
//
// 格式非法的 traceId 会使全部追踪字段留空；非法 spanId 仅丢弃该字段。
// 本函数从不失败。
func Extract(get Getter) TraceInfo {
	if get == nil {
		return TraceInfo{}
	}
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(get(k)); v != "" {
				return v
			}
		}
		return ""
	}

	info := TraceInfo{
		RequestID:     first(HeaderRequestID, HeaderCorrelationID),
		CorrelationID: first(HeaderCorrelationID),
	}

	for _, key := range []string{HeaderTraceparent, HeaderXTraceparent} {
		if tp, ok := ParseTraceparent(get(key)); ok {
			info.TraceID = tp.TraceID
			info.SpanID = tp.SpanID
			info.TraceFlags = tp.TraceFlags
			info.ParentSpanID = validSpanOrEmpty(first(HeaderParentSpanID, HeaderParentSpanIDAl))
			info.Tracestate = first(HeaderTracestate)
			return info
		}
	}

	traceID := strings.ToLower(first(HeaderTraceID, HeaderTraceIDAlt))
	if !isValidTraceID(traceID) {
		return info
	}
	info.TraceID = traceID
	info.SpanID = validSpanOrEmpty(first(HeaderSpanID, HeaderSpanIDAlt))
	info.ParentSpanID = validSpanOrEmpty(first(HeaderParentSpanID, HeaderParentSpanIDAl))
	return info
}

func validSpanOrEmpty(s string) string {
	s = strings.ToLower(s)
	if isValidSpanID(s) {
		return s
	}
	return ""
}

// ExtractFromHTTPHeader 从 HTTP Header 提取关联信息
func ExtractFromHTTPHeader(h http.Header) TraceInfo {
	if h == nil {
		return TraceInfo{}
	}
	return Extract(h.Get)
}

// ExtractFromMetadata 从 gRPC Metadata 提取关联信息
func ExtractFromMetadata(md metadata.MD) TraceInfo {
	if md == nil {
		return TraceInfo{}
	}
	return Extract(func(key string) string {
		if vals := md.Get(key); len(vals) > 0 {
			return vals[0]
		}
		return ""
	})
}

// ExtractFromIncomingContext 从 gRPC incoming context 提取关联信息
func ExtractFromIncomingContext(ctx context.Context) TraceInfo {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return TraceInfo{}
	}
	return ExtractFromMetadata(md)
}

// Correlation 将 TraceInfo 转换为 xctx.Correlation 初值。
//
// correlationId 缺失时等于 requestId。
func (t TraceInfo) Correlation() xctx.Correlation {
	c := xctx.Correlation{
		RequestID:     t.RequestID,
		CorrelationID: t.CorrelationID,
		TraceID:       t.TraceID,
		SpanID:        t.SpanID,
		ParentSpanID:  t.ParentSpanID,
		TraceFlags:    t.TraceFlags,
	}
	if c.CorrelationID == "" {
		c.CorrelationID = c.RequestID
	}
	return c
}

// =============================================================================
// 出站注入（跨服务传播）
// =============================================================================

// InjectToRequest 将当前关联信息注入出站 HTTP 请求。
//
// 写入 x-request-id、x-trace-id、x-span-id，以及 traceId/spanId 有效时的 traceparent。
// 优先使用活跃 OTel span 的标识，其次使用关联上下文中的值。
func InjectToRequest(ctx context.Context, req *http.Request) {
	if req == nil {
		return
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	injectTo(ctx, req.Header.Set)
}

// InjectToMetadata 将当前关联信息写入 gRPC metadata。
func InjectToMetadata(ctx context.Context, md metadata.MD) {
	if md == nil {
		return
	}
	injectTo(ctx, func(k, v string) { md.Set(k, v) })
}

// InjectToOutgoingContext 返回携带关联信息的 gRPC outgoing context。
func InjectToOutgoingContext(ctx context.Context) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	InjectToMetadata(ctx, md)
	return metadata.NewOutgoingContext(ctx, md)
}

func injectTo(ctx context.Context, set func(key, value string)) {
	c := xctx.GetAll(ctx)
	traceID, spanID, flags := c.TraceID, c.SpanID, c.TraceFlags
	if sc := spanContext(ctx); sc.IsValid() {
		traceID = sc.TraceID().String()
		spanID = sc.SpanID().String()
		flags = sc.TraceFlags().String()
	}

	if c.RequestID != "" {
		set(HeaderRequestID, c.RequestID)
	}
	if traceID != "" {
		set(HeaderTraceID, traceID)
	}
	if spanID != "" {
		set(HeaderSpanID, spanID)
	}
	if tp := FormatTraceparent(traceID, spanID, flags); tp != "" {
		set(HeaderTraceparent, tp)
	}
}
