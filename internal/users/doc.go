// Package users 用户 CRUD 服务：内存仓储、读缓存、领域服务与 HTTP/WebSocket 入口。
package users
