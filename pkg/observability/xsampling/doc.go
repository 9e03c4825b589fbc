// Package xsampling 提供链路追踪与日志的采样策略。
//
// # 策略
//
//   - Always(): 全采样
//   - Never(): 不采样
//   - NewRateSampler(rate): 固定比率随机采样
//   - NewTraceIDRatio(rate): 按 traceId 一致性采样（xxhash）
//   - NewParentBased(root): 非根 span 跟随父级采样位，根 span 交给 root
//
// # traceId 一致性
//
// 比率采样将 traceId 的 xxhash 值映射到 [0,1) 后与 rate 比较。
// xxhash 是确定性的，同一 traceId 在所有进程中得到相同决策：
// rate=0 时链路上没有任何 span 被导出，rate=1 时全部导出。
//
// # 配置与 OTel
//
// ParsePolicy 解析 always | never | <ratio> | parent:<ratio>，
// Policy.OTel() 返回可直接传给 sdktrace.WithSampler 的 OTel Sampler，
// Policy.Sampler() 返回本包的 Sampler。
//
// 所有采样器都是并发安全的。
package xsampling
