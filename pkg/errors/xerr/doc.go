// Package xerr 定义领域错误记录。
//
// 错误按后果分类（Kind），每个类别带有默认的 HTTP 状态码、日志策略与暴露策略：
//
//	类别               状态码   记录日志   对外展示消息
//	ClientInput        400      是         是
//	BusinessRule       400      否         是
//	NotFound           404      否         是
//	Conflict           409      否         是
//	Unauthenticated    401      是         是
//	Forbidden          403      是         是
//	Upstream           502      是         否
//	Internal           500      是         否
//
// 默认值可通过 WithStatus/WithLoggable/WithExpose 按实例覆盖：
//
//	return xerr.NotFound("USER_NOT_FOUND", "user not found",
//	    xerr.WithMeta("id", id))
//
// 调用栈在构造时捕获，只进入日志（StackLines），从不出现在对外载荷中。
// 对外载荷见 HTTPBody（含可选 statusCode）与 RPCPayload（无 statusCode）。
//
// From 将任意错误或 panic 值规范化为 *Error。
package xerr
