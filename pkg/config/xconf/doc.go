// Package xconf 加载服务配置，基于 koanf。
//
// 配置来源按顺序叠加：YAML/JSON 文件（或字节数据）→ 环境变量覆盖。
// [Load] 把某个路径下的配置解码到带默认值的结构体，并用 validator 按 `validate`
// 标签校验；[Source.Watch] 监视配置文件，变更后重新加载并通知调用方。
//
// 环境变量覆盖：设置 [WithEnvPrefix]("USERS_") 后，USERS_OBSERVABILITY__LOG_LEVEL
// 覆盖 observability.log_level（双下划线表示层级，键名转为小写）。
package xconf
