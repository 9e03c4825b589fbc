// Package xotel 构建显式的 OpenTelemetry 导出管线。
//
// New 按 Config 创建 TracerProvider 与 MeterProvider，资源属性包含
// service.name、service.version、deployment.environment.name、host.name 与 process.pid。
// 导出目标是一个带标签的 Exporter 值：
//
//   - OTLPGRPC: OTLP/gRPC，span 批量导出，指标周期导出
//   - OTLPHTTP: OTLP/HTTP，同上
//   - NoExporter: span 照常创建但不导出
//   - InMemory: 同步写入内存，用于测试
//
// 采样由 xsampling.Policy 决定。管线不是进程级单例：
// 需要全局安装时设置 Config.SetGlobal。Shutdown 刷新缓冲并关闭导出器，可重复调用。
//
//	p, err := xotel.New(ctx, xotel.Config{
//	    ServiceName: "users",
//	    Exporter:    xotel.OTLPGRPC{Endpoint: "otel-collector:4317", Insecure: true},
//	    Sampler:     xsampling.MustParsePolicy("parent:0.1"),
//	})
//	defer p.Shutdown(context.Background())
package xotel
