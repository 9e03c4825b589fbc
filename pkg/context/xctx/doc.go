// Package xctx 提供请求级关联上下文（Correlation）的存取能力。
//
// 每个入站请求在入口处通过 Run（或 WithStore）在 context 上安装一个可变的 Store，
// 此后请求调用链上的任意代码都可以通过同一个 ctx 读取或修改它，
// 日志、追踪、错误上报据此自动携带 requestId/traceId 等字段。
//
// # 字段
//
//	requestId      请求标识（入站头或 UUID 生成）
//	correlationId  关联标识（缺省等于 requestId）
//	traceId        追踪标识（W3C，128-bit）
//	spanId         当前 span 标识（W3C，64-bit）
//	parentSpanId   父 span 标识
//	traceFlags     W3C trace-flags（采样位）
//	userId/userRole  上游已认证的用户身份
//	component      传输类型：http/rpc/ws/internal
//	service/method 逻辑服务名与方法名
//	Tags           任意扩展键值
//
// # 语义
//
//   - Run(ctx, c, fn)：fn 及其派生调用看到 c；嵌套 Run 只遮蔽自身范围，返回后外层不变。
//   - Set(ctx, key, v)：原地修改活跃 Store；没有活跃 Store 时为空操作。
//   - Get/GetAll：不存在时返回零值，不会 panic。
//   - Fork(ctx)：复制活跃 Store，派生 context 上的修改不回写（span 作用域使用）。
//
// 不同请求持有不同的 Store，隔离由 context 链结构保证，不依赖任何全局可变状态。
//
// # 命名约定
//
//	Xxx(ctx)         读取：缺失时返回零值
//	RequireXxx(ctx)  强制读取：缺失时返回哨兵错误
//	SetXxx(ctx, v)   写入活跃 Store：无 Store 时忽略
//	GetXxx(ctx)      批量读取：返回结构体
//
// xctx 是纯存取层，不对字段值做格式校验；格式校验在入口层（xinbound/xtrace）完成。
package xctx
