package xlog

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"
)

var (
	_ Logger          = (*xlogger)(nil)
	_ LoggerWithLevel = (*xlogger)(nil)
)

// shared 同一 Build 产生的 logger 及其 With/WithGroup 派生实例共用的状态
type shared struct {
	levelVar  *slog.LevelVar
	addSource bool
	async     *AsyncWriter
	onError   func(error)

	// errs 内部错误计数；reporting 为 true 时 onError 正在执行
	errs      atomic.Uint64
	reporting atomic.Bool
}

// report 记录一次内部错误（Handle 失败或异步写出失败）。
// onError 执行期间再出现的错误只计数；回调 panic 也计一次。
func (s *shared) report(err error) {
	s.errs.Add(1)
	if s.onError == nil || !s.reporting.CompareAndSwap(false, true) {
		return
	}
	defer s.reporting.Store(false)
	defer func() {
		if recover() != nil {
			s.errs.Add(1)
		}
	}()
	s.onError(err)
}

type xlogger struct {
	handler slog.Handler
	*shared
}

func newXLogger(h slog.Handler, s *shared) *xlogger {
	return &xlogger{handler: h, shared: s}
}

// 调用深度：runtime.Callers → emit → 公开方法 → 调用方
const callerDepth = 3

// emit 构造并写出一条记录。depth 为 runtime.Callers 到调用方的帧数，
// 只在开启 AddSource 时使用。
//
//go:noinline
func (l *xlogger) emit(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr, depth int, withStack bool) {
	if !l.handler.Enabled(ctx, level) {
		return
	}
	var pc uintptr
	if l.addSource {
		var pcs [1]uintptr
		runtime.Callers(depth, pcs[:])
		pc = pcs[0]
	}
	r := slog.NewRecord(time.Now(), level, msg, pc)
	r.AddAttrs(attrs...)
	if withStack {
		r.AddAttrs(slog.Any(KeyStack, stackLines()))
	}
	if err := l.handler.Handle(ctx, r); err != nil {
		l.report(err)
	}
}

// stackLines 当前 goroutine 的堆栈，按行拆分便于 JSON 输出
func stackLines() []string {
	return strings.Split(strings.TrimSpace(string(debug.Stack())), "\n")
}

func (l *xlogger) Trace(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.Level(LevelTrace), msg, attrs, callerDepth, false)
}

func (l *xlogger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelDebug, msg, attrs, callerDepth, false)
}

func (l *xlogger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelInfo, msg, attrs, callerDepth, false)
}

func (l *xlogger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelWarn, msg, attrs, callerDepth, false)
}

func (l *xlogger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelError, msg, attrs, callerDepth, false)
}

// Fatal 只按 FATAL 级别记录，不退出进程。
func (l *xlogger) Fatal(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.Level(LevelFatal), msg, attrs, callerDepth, false)
}

// Stack 按 ERROR 级别记录，附带当前 goroutine 的堆栈。
func (l *xlogger) Stack(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.emit(ctx, slog.LevelError, msg, attrs, callerDepth, true)
}

func (l *xlogger) With(attrs ...slog.Attr) Logger {
	if len(attrs) == 0 {
		return l
	}
	return newXLogger(l.handler.WithAttrs(attrs), l.shared)
}

func (l *xlogger) WithGroup(name string) Logger {
	if name == "" {
		return l
	}
	return newXLogger(l.handler.WithGroup(name), l.shared)
}

// SetLevel 修改级别，对所有派生 logger 生效。
func (l *xlogger) SetLevel(level Level) {
	l.levelVar.Set(slog.Level(level))
}

func (l *xlogger) GetLevel() Level {
	return Level(l.levelVar.Level())
}

func (l *xlogger) Enabled(ctx context.Context, level Level) bool {
	return l.handler.Enabled(ctx, slog.Level(level))
}

// Dropped 返回异步队列满时丢弃的记录数；未启用异步写出或 l 不是 Build 创建的实例时返回 0。
func Dropped(l Logger) uint64 {
	xl, ok := l.(*xlogger)
	if !ok || xl.async == nil {
		return 0
	}
	return xl.async.Dropped()
}

// Handler 返回 l 底层的 slog.Handler，用于桥接只接受 *slog.Logger 或 *log.Logger 的库；
// l 不是 Build 创建的实例时返回 slog.Default 的 Handler。
func Handler(l Logger) slog.Handler {
	if xl, ok := l.(*xlogger); ok && xl.handler != nil {
		return xl.handler
	}
	return slog.Default().Handler()
}
