package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xrotate"
)

// ReplaceAttrFunc 属性替换函数类型
//
// 用于字段重命名、值格式化等治理场景。返回空 Key 的 Attr 会移除该属性。
// 在 EnrichHandler 之后由底层 slog handler 调用。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// Builder 日志配置构建器
//
// first-error-wins：遇到第一个配置错误后，Build 返回该错误。
type Builder struct {
	output       io.Writer
	level        Level
	levelVar     *slog.LevelVar
	format       string
	addSource    bool
	enableEnrich bool
	infra        *Infra
	redactKeys   []string
	redactMarker string
	noRedact     bool
	inferCaller  bool
	callerSkip   []string
	asyncBuffer  int
	replaceAttr  ReplaceAttrFunc
	rotator      xrotate.Rotator
	onError      func(error)
	err          error
}

// New 创建配置构建器
//
// 默认：stderr、Info 级别、text 格式、注入关联字段、按 DefaultRedactKeys 脱敏。
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	return &Builder{
		output:       os.Stderr,
		level:        LevelInfo,
		levelVar:     levelVar,
		format:       "text",
		enableEnrich: true,
	}
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w == nil {
		b.setErr(errors.New("xlog: output is nil"))
		return b
	}
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.level = level
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.setErr(err)
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空值视为 text。
func (b *Builder) SetFormat(format string) *Builder {
	normalized := strings.ToLower(strings.TrimSpace(format))
	if normalized == "" {
		b.format = "text"
		return b
	}
	if normalized != "text" && normalized != "json" {
		b.setErr(fmt.Errorf("xlog: unknown format %q", format))
		return b
	}
	b.format = normalized
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 是否注入 xctx 关联字段（requestId、traceId 等），默认启用。
func (b *Builder) SetEnrich(enable bool) *Builder {
	b.enableEnrich = enable
	return b
}

// SetInfra 设置附加到每条日志的进程级元数据，通常由 NewInfra 创建。
func (b *Builder) SetInfra(infra Infra) *Builder {
	b.infra = &infra
	return b
}

// SetRedactKeys 设置敏感词（key 包含即脱敏，大小写不敏感）。
// 传入空列表时恢复 DefaultRedactKeys。
func (b *Builder) SetRedactKeys(words ...string) *Builder {
	b.redactKeys = words
	b.noRedact = false
	return b
}

// AddRedactKeys 在当前敏感词（未设置时为 DefaultRedactKeys）之上追加 words。
func (b *Builder) AddRedactKeys(words ...string) *Builder {
	base := b.redactKeys
	if len(base) == 0 {
		base = DefaultRedactKeys
	}
	b.redactKeys = append(slices.Clone(base), words...)
	b.noRedact = false
	return b
}

// SetRedactMarker 设置脱敏替换值，默认 DefaultRedactMarker。
func (b *Builder) SetRedactMarker(marker string) *Builder {
	b.redactMarker = marker
	return b
}

// DisableRedaction 关闭脱敏。
func (b *Builder) DisableRedaction() *Builder {
	b.noRedact = true
	return b
}

// SetCallerInference 开启调用方推断：service 与 method 均未知时，
// 从调用栈中第一个非框架帧推断。skipPkgs 为额外跳过的函数名前缀。
func (b *Builder) SetCallerInference(enable bool, skipPkgs ...string) *Builder {
	b.inferCaller = enable
	b.callerSkip = skipPkgs
	return b
}

// SetAsync 启用异步写出，buffer 为队列容量（<= 0 使用 DefaultAsyncBuffer）。
func (b *Builder) SetAsync(buffer int) *Builder {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	b.asyncBuffer = buffer
	return b
}

// SetRotation 设置按大小轮转的日志文件
func (b *Builder) SetRotation(filename string, opts ...xrotate.Option) *Builder {
	rotator, err := xrotate.NewLumberjack(filename, opts...)
	if err != nil {
		b.setErr(err)
		return b
	}
	b.rotator = rotator
	b.output = rotator
	return b
}

// SetOnError 设置内部错误回调
//
// Handler.Handle 失败或异步写出失败时调用。回调在热路径同步执行，应保持轻量；
// 内置递归保护与 panic 隔离。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

// SetReplaceAttr 设置属性替换函数（日志治理）
//
// 示例 - 移除调试属性：
//
//	logger, _, _ := xlog.New().
//		SetReplaceAttr(func(groups []string, a slog.Attr) slog.Attr {
//			if a.Key == "debug_info" {
//				return slog.Attr{}
//			}
//			return a
//		}).
//		Build()
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build 构建 Logger 实例
//
// 返回值：
//   - LoggerWithLevel: 日志实例，同时支持动态级别控制
//   - func() error: 清理函数，先写完异步队列再关闭轮转文件；重复调用安全
//   - error: 配置错误
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	st := &shared{levelVar: b.levelVar, addSource: b.addSource, onError: b.onError}

	out := b.output
	var async *AsyncWriter
	if b.asyncBuffer > 0 {
		async = NewAsyncWriter(out, b.asyncBuffer, st.report)
		out = async
	}

	replace := replaceLevelName
	if user := b.replaceAttr; user != nil {
		replace = func(groups []string, a slog.Attr) slog.Attr {
			return user(groups, replaceLevelName(groups, a))
		}
	}
	opts := &slog.HandlerOptions{
		Level:       b.levelVar,
		AddSource:   b.addSource,
		ReplaceAttr: replace,
	}

	var base slog.Handler
	switch b.format {
	case "json":
		base = slog.NewJSONHandler(out, opts)
	default:
		base = slog.NewTextHandler(out, opts)
	}

	enrichOpts := []EnrichOption{
		WithContextFields(b.enableEnrich),
		WithCallerInference(b.inferCaller, b.callerSkip...),
	}
	if b.infra != nil {
		enrichOpts = append(enrichOpts, WithInfra(*b.infra))
	}
	if !b.noRedact {
		enrichOpts = append(enrichOpts, WithRedactor(NewRedactor(b.redactKeys, b.redactMarker)))
	}
	handler, err := NewEnrichHandler(base, enrichOpts...)
	if err != nil {
		return nil, nil, err
	}
	st.async = async

	return newXLogger(handler, st), b.createCleanup(async), nil
}

// createCleanup 创建清理函数
func (b *Builder) createCleanup(async *AsyncWriter) func() error {
	var (
		once sync.Once
		err  error
	)
	rotator := b.rotator

	return func() error {
		once.Do(func() {
			if async != nil {
				err = async.Close()
			}
			if rotator != nil {
				err = errors.Join(err, rotator.Close())
			}
		})
		return err
	}
}
