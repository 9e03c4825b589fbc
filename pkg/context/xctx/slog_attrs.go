package xctx

import (
	"context"
	"log/slog"
	"slices"
)

// =============================================================================
// slog 集成
// =============================================================================

// AppendAttrs 将活跃关联上下文中的非空字段追加到 attrs。
//
// 顺序固定：类型化字段在前，Tags 按 key 排序追加在后。
func AppendAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	s, ok := FromContext(ctx)
	if !ok {
		return attrs
	}
	s.view(func(c *Correlation) {
		attrs = appendString(attrs, KeyRequestID, c.RequestID)
		attrs = appendString(attrs, KeyCorrelationID, c.CorrelationID)
		attrs = appendString(attrs, KeyTraceID, c.TraceID)
		attrs = appendString(attrs, KeySpanID, c.SpanID)
		attrs = appendString(attrs, KeyParentSpanID, c.ParentSpanID)
		attrs = appendString(attrs, KeyTraceFlags, c.TraceFlags)
		attrs = appendString(attrs, KeyUserID, c.UserID)
		attrs = appendString(attrs, KeyUserRole, c.UserRole)
		attrs = appendString(attrs, KeyComponent, string(c.Component))
		attrs = appendString(attrs, KeyService, c.Service)
		attrs = appendString(attrs, KeyMethod, c.Method)

		if len(c.Tags) == 0 {
			return
		}
		keys := make([]string, 0, len(c.Tags))
		for k := range c.Tags {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			attrs = append(attrs, slog.Any(k, c.Tags[k]))
		}
	})
	return attrs
}

// LogAttrs 返回活跃关联上下文的 slog 属性，没有任何字段时返回 nil。
//
// 每次调用都会分配新切片，热路径请使用 AppendAttrs。
func LogAttrs(ctx context.Context) []slog.Attr {
	attrs := AppendAttrs(make([]slog.Attr, 0, fieldCount), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// TraceAttrs 仅返回追踪相关字段（traceId/spanId/requestId）。
func TraceAttrs(ctx context.Context) []slog.Attr {
	tr := GetTrace(ctx)
	var attrs []slog.Attr
	attrs = appendString(attrs, KeyRequestID, tr.RequestID)
	attrs = appendString(attrs, KeyTraceID, tr.TraceID)
	attrs = appendString(attrs, KeySpanID, tr.SpanID)
	return attrs
}

func appendString(attrs []slog.Attr, key, v string) []slog.Attr {
	if v == "" {
		return attrs
	}
	return append(attrs, slog.String(key, v))
}
