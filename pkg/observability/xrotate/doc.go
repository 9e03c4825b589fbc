// Package xrotate 为日志输出提供按大小轮转的文件写入器。
//
// 服务默认把结构化日志写到 stdout；配置了文件路径时，xlog 通过
// [NewLumberjack] 写入本地文件并按大小轮转，旧文件按数量与天数清理。
package xrotate
