package xlog

import (
	"log/slog"
	"time"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
)

// 常用属性 Key。关联字段的 Key 引用 xctx，保证跨包一致。
const (
	KeyError      = "error"
	KeyStack      = "stack"
	KeyDuration   = "duration"
	KeyCount      = "count"
	KeyHTTPMethod = "httpMethod"
	KeyPath       = "path"
	KeyStatusCode = "statusCode"
	KeyEvent      = "event"
	KeyClientID   = "clientId"

	KeyRequestID = xctx.KeyRequestID
	KeyUserID    = xctx.KeyUserID
	KeyComponent = xctx.KeyComponent
	KeyService   = xctx.KeyService
	KeyMethod    = xctx.KeyMethod
)

// Err 创建错误属性，err 为 nil 时返回空属性（被忽略）。
//
// error 及以上级别的记录中，该属性展开为 {name, message, stack[], cause}；
// 其他级别输出为错误消息字符串。
//
//	if err != nil {
//	    logger.Error(ctx, "create user failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any(KeyError, err)
}

// Duration 创建耗时属性（人类可读格式，如 "1.5s"）
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Operation 显式标注 service/method，优先于调用方推断。
func Operation(service, method string) slog.Attr {
	return slog.Group("",
		slog.String(KeyService, service),
		slog.String(KeyMethod, method),
	)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// UserID 创建用户 ID 属性
func UserID(id string) slog.Attr {
	return slog.String(KeyUserID, id)
}

// StatusCode 创建 HTTP 状态码属性
func StatusCode(code int) slog.Attr {
	return slog.Int(KeyStatusCode, code)
}

// HTTPMethod 创建 HTTP 方法属性
func HTTPMethod(m string) slog.Attr {
	return slog.String(KeyHTTPMethod, m)
}

// Path 创建请求路径属性
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Event 创建 WebSocket 事件名属性
func Event(name string) slog.Attr {
	return slog.String(KeyEvent, name)
}

// ClientID 创建 WebSocket 客户端标识属性
func ClientID(id string) slog.Attr {
	return slog.String(KeyClientID, id)
}
