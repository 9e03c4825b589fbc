// Package xrun 管理服务进程内多个长期运行组件（HTTP/gRPC 服务器、配置监视等）的
// 启动与协同关闭。
//
// 任一组件返回错误或收到终止信号时，其余组件的 ctx 被取消；[Run] 在全部组件退出后
// 返回第一个有意义的退出原因，信号退出时为 [*SignalError]。
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.HTTPServer("http", srv, 10*time.Second),
//	    xrun.GRPCServer("grpc", gsrv, lis, 10*time.Second),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常关闭
//	}
package xrun
