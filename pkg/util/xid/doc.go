// Package xid 基于 Sonyflake 生成按时间有序的分布式唯一 ID，
// 以 base36 字符串形式作为用户等实体的主键。
package xid
