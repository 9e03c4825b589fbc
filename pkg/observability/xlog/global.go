package xlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// 进程级默认 Logger，供尚未注入 Logger 的启动代码和工具函数使用。
var (
	globalLogger atomic.Pointer[LoggerWithLevel]
	globalInit   sync.Mutex

	// newBuilder 测试可替换
	newBuilder = New
)

// Default 返回默认 Logger；首次调用时按 stderr、INFO、text 构建。
func Default() LoggerWithLevel {
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	globalInit.Lock()
	defer globalInit.Unlock()
	if l := globalLogger.Load(); l != nil {
		return *l
	}
	l := buildDefault()
	globalLogger.Store(&l)
	return l
}

// buildDefault 构建失败时退化为无增强的 text logger，不 panic。
func buildDefault() LoggerWithLevel {
	l, _, err := newBuilder().Build()
	if err == nil {
		return l
	}
	fmt.Fprintf(os.Stderr, "xlog: failed to build default logger: %v, using fallback\n", err)
	lv := new(slog.LevelVar)
	return newXLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}), &shared{levelVar: lv})
}

// SetDefault 替换默认 Logger，nil 被忽略。
func SetDefault(l LoggerWithLevel) {
	if l != nil {
		globalLogger.Store(&l)
	}
}

// ResetDefault 清空默认 Logger，下次 Default 重新构建。测试用。
func ResetDefault() {
	globalInit.Lock()
	globalLogger.Store(nil)
	globalInit.Unlock()
}

// logDefault 包级函数比实例方法多一帧，AddSource 需要多跳过一层。
func logDefault(ctx context.Context, level Level, msg string, attrs []slog.Attr, withStack bool) {
	l := Default()
	if xl, ok := l.(*xlogger); ok {
		xl.emit(ctx, slog.Level(level), msg, attrs, callerDepth+1, withStack)
		return
	}
	if withStack {
		l.Stack(ctx, msg, attrs...)
		return
	}
	methodFor(l, level)(ctx, msg, attrs...)
}

// methodFor 取不高于 level 的最近具名级别对应的方法
func methodFor(l Logger, level Level) func(context.Context, string, ...slog.Attr) {
	switch {
	case level <= LevelTrace:
		return l.Trace
	case level <= LevelDebug:
		return l.Debug
	case level <= LevelInfo:
		return l.Info
	case level <= LevelWarn:
		return l.Warn
	case level <= LevelError:
		return l.Error
	}
	return l.Fatal
}

func Trace(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelTrace, msg, attrs, false)
}

func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelDebug, msg, attrs, false)
}

// Info 使用默认 Logger 记录
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelInfo, msg, attrs, false)
}

func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelWarn, msg, attrs, false)
}

func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelError, msg, attrs, false)
}

// Fatal 不退出进程
func Fatal(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelFatal, msg, attrs, false)
}

func Stack(ctx context.Context, msg string, attrs ...slog.Attr) {
	logDefault(ctx, LevelError, msg, attrs, true)
}
