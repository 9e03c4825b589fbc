// Package xtrace 管理 span 树，并保持关联上下文与当前 span 一致。
//
// # Span 管理
//
// Tracer.Start / Do 在新 span 中执行 work：
//
//	err := tracer.Start(ctx, "users.create", func(ctx context.Context) error {
//	    // 此处的日志自动携带新 span 的 traceId/spanId
//	    return repo.Create(ctx, u)
//	}, xtrace.WithKind(xtrace.KindInternal))
//
// span 在所有退出路径上恰好结束一次，状态恰好设置一次。
// work 期间关联上下文是外层 Store 的派生副本，外层 Store 保留父 span 的标识，
// 并发的兄弟 span 彼此不可见。
//
// ActiveSpan/TraceID/SpanID 读取当前活跃 span，没有时返回 nil 或空字符串。
//
// # 传播
//
// 入站识别（先匹配者优先）：
//
//	x-request-id, x-correlation-id           请求标识
//	traceparent, x-traceparent               W3C: {version}-{trace-id}-{parent-id}-{flags}
//	x-trace-id/x-traceid                     traceparent 无效时的离散回退
//	x-span-id/x-spanid
//	x-parent-span-id/x-parent-spanid
//
// InjectToRequest / InjectToMetadata 用于出站调用，写入 traceparent 与离散字段。
package xtrace
