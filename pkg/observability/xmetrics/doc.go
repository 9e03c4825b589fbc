// Package xmetrics 对操作计数并记录耗时。
//
// 只负责指标；span 由 xtrace 创建。入站中间件用它度量每个请求：
//
//	m := xmetrics.Start(ctx, obs, xmetrics.Options{
//		Operation: "GET /users/{id}",
//		Attrs:     []xmetrics.Attr{attribute.Int("statusCode", 200)},
//	})
//	defer m.End(xmetrics.Result{Err: err})
//
// # 指标命名
//
//   - operation.total     计数器，单位 1
//   - operation.duration  直方图，单位 s
//
// 通过 WithNamespace 可加前缀，如 users.operation.total。
// 统一属性：component / operation / status，外加调用方给出的低基数属性。
package xmetrics
