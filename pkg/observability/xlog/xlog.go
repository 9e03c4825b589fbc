package xlog

import (
	"context"
	"log/slog"
)

// Logger 结构化日志接口。
//
// requestId/traceId 等关联字段从 ctx 中的 xctx Store 读取，调用方无需手动传入。
type Logger interface {
	Trace(ctx context.Context, msg string, attrs ...slog.Attr)
	Debug(ctx context.Context, msg string, attrs ...slog.Attr)
	Info(ctx context.Context, msg string, attrs ...slog.Attr)
	Warn(ctx context.Context, msg string, attrs ...slog.Attr)
	Error(ctx context.Context, msg string, attrs ...slog.Attr)

	// Fatal 只记录 FATAL 级别，不退出进程。
	Fatal(ctx context.Context, msg string, attrs ...slog.Attr)

	// Stack 以 ERROR 级别记录，并附带当前 goroutine 的调用栈。
	Stack(ctx context.Context, msg string, attrs ...slog.Attr)

	// With 派生带固定属性的 Logger，级别与父级联动。
	With(attrs ...slog.Attr) Logger

	// WithGroup 派生分组 Logger；关联字段与基础设施字段不进入分组。
	WithGroup(name string) Logger
}

// Leveler 运行时级别控制
type Leveler interface {
	SetLevel(level Level)
	GetLevel() Level
	Enabled(ctx context.Context, level Level) bool
}

// LoggerWithLevel 是 Build 的返回类型。
type LoggerWithLevel interface {
	Logger
	Leveler
}
