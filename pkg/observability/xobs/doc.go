// Package xobs 把导出管线、追踪、日志、错误上报与指标组装成一个服务可直接使用的整体。
//
// 服务启动时从配置构造一个 [Observability]，把它提供的 HTTP 中间件、
// gRPC 拦截器与 WebSocket handler 挂到各个入口上；进程退出前调用 Shutdown，
// 先冲刷 span 与指标，最后关闭日志输出。
//
//	obs, err := xobs.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(context.Background())
//	r.Use(obs.HTTPMiddleware())
package xobs
