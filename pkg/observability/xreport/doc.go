// Package xreport 是传输层边界上唯一的错误出口。
//
// 每个传输通道一个入口，彼此独立：
//
//   - HTTP: 由错误推导状态码，写 JSON 响应体并回写 x-request-id；
//     5xx 记 error，4xx 记 warn，其余记 info
//   - RPC: 记 error，返回带 RPCPayload 详情的 gRPC status 错误（不含 statusCode）
//   - WS: 按事件名与客户端 id 记 error，不写回任何响应
//   - Unknown: 记 error，不做响应
//
// 所有入口都只在错误的 Loggable 为 true 时记录日志，并在错误尚未标记传输通道时
// 打上当前通道。非领域错误（包括 panic 出的任意值）按 UNKNOWN_ERROR 处理。
//
// RecoverHTTP、UnaryServerInterceptor、StreamServerInterceptor 把 panic 与
// handler 返回的错误汇入对应入口。
package xreport
