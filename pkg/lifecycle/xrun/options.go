package xrun

import (
	"os"
	"syscall"

	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
)

// DefaultSignals 默认监听的退出信号，每次返回新切片。
func DefaultSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// Option 配置 Group
type Option func(*options)

type options struct {
	logger    xlog.Logger
	name      string
	signals   []os.Signal
	noSignals bool
	// sigCh 替换系统信号来源，仅用于测试
	sigCh <-chan os.Signal
}

func newOptions(opts []Option) *options {
	o := &options{name: "xrun"}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if len(o.signals) == 0 {
		o.signals = DefaultSignals()
	}
	return o
}

func (o *options) log() xlog.Logger {
	if o.logger == nil {
		return xlog.Default()
	}
	return o.logger
}

// WithLogger 设置记录组件启停的 logger，默认 xlog.Default()。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithName 设置日志中的 group 名称
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithSignals 替换 Run 监听的信号
func WithSignals(signals ...os.Signal) Option {
	copied := append([]os.Signal(nil), signals...)
	return func(o *options) { o.signals = copied }
}

// WithoutSignalHandler 不监听信号，由调用方通过 ctx 控制退出。
func WithoutSignalHandler() Option {
	return func(o *options) { o.noSignals = true }
}

func withSignalChan(ch <-chan os.Signal) Option {
	return func(o *options) { o.sigCh = ch }
}
