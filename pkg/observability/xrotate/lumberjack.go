package xrotate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// 默认值
const (
	DefaultMaxSizeMB  = 100
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30

	maxSizeMB = 10240
)

// File 日志文件轮转配置，可直接嵌入服务配置。
type File struct {
	// Path 日志文件路径，为空表示不写文件
	Path string `koanf:"path" json:"path"`
	// MaxSizeMB 单个文件达到该大小后轮转
	MaxSizeMB int `koanf:"max_size_mb" json:"maxSizeMb"`
	// MaxBackups 保留的旧文件个数，0 表示只按天数清理
	MaxBackups int `koanf:"max_backups" json:"maxBackups"`
	// MaxAgeDays 旧文件保留天数，0 表示只按个数清理
	MaxAgeDays int `koanf:"max_age_days" json:"maxAgeDays"`
	// Compress 是否 gzip 压缩旧文件
	Compress bool `koanf:"compress" json:"compress"`
}

// Options 把 File 转换为 NewLumberjack 的选项，零值字段使用默认值。
func (f File) Options() []Option {
	var opts []Option
	if f.MaxSizeMB != 0 {
		opts = append(opts, WithMaxSize(f.MaxSizeMB))
	}
	if f.MaxBackups != 0 {
		opts = append(opts, WithMaxBackups(f.MaxBackups))
	}
	if f.MaxAgeDays != 0 {
		opts = append(opts, WithMaxAge(f.MaxAgeDays))
	}
	return append(opts, WithCompress(f.Compress))
}

type config struct {
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	compress   bool
	localTime  bool
}

// Option 配置轮转行为
type Option func(*config)

// WithMaxSize 设置单个文件最大大小（MB）
func WithMaxSize(mb int) Option {
	return func(c *config) { c.maxSizeMB = mb }
}

// WithMaxBackups 设置保留的旧文件个数
func WithMaxBackups(n int) Option {
	return func(c *config) { c.maxBackups = n }
}

// WithMaxAge 设置旧文件保留天数
func WithMaxAge(days int) Option {
	return func(c *config) { c.maxAgeDays = days }
}

// WithCompress 设置是否压缩旧文件
func WithCompress(compress bool) Option {
	return func(c *config) { c.compress = compress }
}

// WithLocalTime 旧文件名使用本地时间，默认 UTC
func WithLocalTime(local bool) Option {
	return func(c *config) { c.localTime = local }
}

func (c *config) validate() error {
	if c.maxSizeMB <= 0 || c.maxSizeMB > maxSizeMB {
		return fmt.Errorf("%w: got %d, want 1~%d", ErrInvalidMaxSize, c.maxSizeMB, maxSizeMB)
	}
	if c.maxBackups < 0 || c.maxAgeDays < 0 || (c.maxBackups == 0 && c.maxAgeDays == 0) {
		return fmt.Errorf("%w: backups=%d ageDays=%d", ErrInvalidRetention, c.maxBackups, c.maxAgeDays)
	}
	return nil
}

type lumberjackRotator struct {
	logger *lumberjack.Logger
	closed atomic.Bool
}

// NewLumberjack 创建写入 filename 的轮转器，父目录不存在时创建。
func NewLumberjack(filename string, opts ...Option) (Rotator, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	cfg := config{
		maxSizeMB:  DefaultMaxSizeMB,
		maxBackups: DefaultMaxBackups,
		maxAgeDays: DefaultMaxAgeDays,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	path, err := filepath.Abs(filepath.Clean(filename))
	if err != nil {
		return nil, fmt.Errorf("xrotate: resolve %q: %w", filename, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("xrotate: create log dir: %w", err)
	}

	return &lumberjackRotator{logger: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.maxSizeMB,
		MaxBackups: cfg.maxBackups,
		MaxAge:     cfg.maxAgeDays,
		Compress:   cfg.compress,
		LocalTime:  cfg.localTime,
	}}, nil
}

func (r *lumberjackRotator) Write(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	return r.logger.Write(p)
}

func (r *lumberjackRotator) Rotate() error {
	if r.closed.Load() {
		return ErrClosed
	}
	return r.logger.Rotate()
}

func (r *lumberjackRotator) Close() error {
	if r.closed.Swap(true) {
		return ErrClosed
	}
	return r.logger.Close()
}
