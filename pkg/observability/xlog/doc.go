// Package xlog 基于 log/slog 的结构化日志，每条记录自动携带请求关联字段。
//
// # 创建 Logger
//
// Builder 模式（first-error-wins），Build 返回 LoggerWithLevel 与 cleanup：
//
//	logger, cleanup, err := xlog.New().
//	    SetFormat("json").
//	    SetLevelString("debug").
//	    SetInfra(xlog.NewInfra("production", "users", "1.4.0")).
//	    SetAsync(4096).
//	    Build()
//	defer cleanup()
//
// # 记录的组成
//
// 合并顺序（后者覆盖前者）：
//
//	基础设施字段   host, pid, env, serviceName, serviceVersion
//	关联字段       requestId, correlationId, traceId, spanId, parentSpanId, traceFlags,
//	               userId, userRole, component, service, method 及自定义标签
//	调用方属性     With 属性与本次调用的属性
//	错误字段       error 及以上级别：error → {name, message, stack[], cause}
//
// component 为 http 时记录中不出现 service/method。
// 开启 SetCallerInference 后，两者都未知时从调用栈推断（启发式，可能不准确；
// 显式传入的值始终优先）。
//
// 脱敏最后执行：key 包含敏感词（password、token、authorization、secret、apikey、
// cookie、session，大小写不敏感）的属性值替换为 [REDACTED]，递归进入分组。
//
// 关联字段缺少 traceId/spanId 时回退到 ctx 中活跃的 OTel span。
//
// # 日志级别
//
// LevelTrace(-8)、LevelDebug(-4)、LevelInfo(0)、LevelWarn(4)、LevelError(8)、LevelFatal(12)。
// Fatal 只记录，不退出进程。低于阈值的记录在格式化之前被丢弃。
//
// # 异步写出
//
// SetAsync 使写出在后台 goroutine 中完成；队列满时丢弃并计数（[Dropped]），
// cleanup 会先写完队列。
//
// # 全局 Logger
//
// [Default]、[SetDefault]、[ResetDefault] 与包级函数 [Trace]、[Debug]、[Info]、
// [Warn]、[Error]、[Fatal]、[Stack]。
package xlog
