// Package xinbound 在请求进入服务时初始化关联上下文。
//
// 每个传输通道一个适配器，都在业务 handler 之前运行：
//
//   - HTTP: Middleware
//   - gRPC: UnaryServerInterceptor / StreamServerInterceptor
//   - WebSocket: NewWSHandler，每条入站消息一个独立的关联作用域
//
// 适配器从入站元数据中提取 requestId 与追踪上下文（规则见 xtrace.Extract），
// 缺失的 requestId 生成 UUID；读取上游已认证的身份；在 xctx.Run 中调用 handler。
// 配置了 Tracer 时打开一个 server span，handler 看到的 traceId/spanId 指向它。
//
// 在 handler 运行之前写出响应头：x-request-id（总是），x-trace-id（已知时）、x-span-id（存在本服务 server span 时）。
// 格式错误的元数据只会被忽略，从不拒绝请求。
//
//	mux := chi.NewRouter()
//	mux.Use(xinbound.Middleware(
//	    xinbound.WithTracer(tracer),
//	    xinbound.WithLogger(logger),
//	    xinbound.WithIgnorePaths("/healthz", "/metrics"),
//	))
package xinbound
