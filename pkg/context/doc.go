// Package context 提供请求关联与入站接入相关的子包。
//
// 子包列表：
//   - xctx: 关联存储，在一次调用作用域内传递请求 ID、追踪 ID、用户与组件信息
//   - xinbound: HTTP/gRPC/WebSocket 入站初始化，建立关联作用域与根 span
//
// 设计原则：
//   - 关联信息通过 context.Context 传递，不使用全局变量
//   - 入站层负责填充，业务代码只读取
//   - 遵循 W3C Trace Context 标准
package context
