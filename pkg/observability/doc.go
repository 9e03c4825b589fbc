// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，自动附加关联字段
//   - xtrace: span 管理，按作用域派生关联存储
//   - xmetrics: 操作级计数与耗时指标
//   - xsampling: 采样策略解析
//   - xrotate: 日志文件轮转
//   - xotel: 显式的 OpenTelemetry 导出管线
//   - xreport: 按传输通道上报并回写错误
//   - xobs: 组合根，按配置装配以上组件
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 自动从 context 中提取关联信息注入日志
//   - 支持动态级别控制和采样策略
package observability
