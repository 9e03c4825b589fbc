// Package xlru 提供带 TTL 的泛型 LRU 缓存，基于 hashicorp/golang-lru/v2/expirable。
//
// 缓存在 TTL > 0 时持有一个后台清理 goroutine，用完必须调用 Close。
// Stats 返回命中、未命中与淘汰计数，供调用方导出为指标。
package xlru
