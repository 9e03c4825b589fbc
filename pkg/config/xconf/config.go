package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式
type Format string

// 支持的格式
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

const (
	delim = "."
	tag   = "koanf"
)

// Option 配置 Source
type Option func(*Source)

// WithEnvPrefix 启用以 prefix 开头的环境变量覆盖。
func WithEnvPrefix(prefix string) Option {
	return func(s *Source) { s.envPrefix = prefix }
}

// withEnviron 替换环境变量来源，仅用于测试。
func withEnviron(fn func() []string) Option {
	return func(s *Source) { s.environ = fn }
}

// Source 一份可重新加载的配置，并发安全。
type Source struct {
	mu        sync.RWMutex
	k         *koanf.Koanf
	path      string
	format    Format
	data      []byte
	envPrefix string
	environ   func() []string
}

// Open 从文件加载配置，格式由扩展名决定（.yaml/.yml/.json）。
func Open(path string, opts ...Option) (*Source, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	s := newSource(format, opts)
	s.path = path
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromBytes 从内存数据加载配置，空数据得到空配置。
func FromBytes(data []byte, format Format, opts ...Option) (*Source, error) {
	if format != FormatYAML && format != FormatJSON {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	s := newSource(format, opts)
	s.data = data
	k, err := s.build(data)
	if err != nil {
		return nil, err
	}
	s.k = k
	return s, nil
}

func newSource(format Format, opts []Option) *Source {
	s := &Source{format: format, environ: os.Environ}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Koanf 返回当前的 koanf 实例快照，Reload 之后需重新获取。
func (s *Source) Koanf() *koanf.Koanf {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k
}

// Path 返回配置文件路径，FromBytes 创建的 Source 返回空字符串。
func (s *Source) Path() string { return s.path }

// Format 返回配置格式
func (s *Source) Format() Format { return s.format }

// Unmarshal 将 path 下的配置解码到 target，path 为空表示全部。
func (s *Source) Unmarshal(path string, target any) error {
	if err := s.Koanf().UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Reload 重新读取配置文件。解析失败时保留旧配置。
func (s *Source) Reload() error {
	if s.path == "" {
		return ErrNotReloadable
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k, err := s.build(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.k = k
	s.mu.Unlock()
	return nil
}

func (s *Source) build(data []byte) (*koanf.Koanf, error) {
	k := koanf.New(delim)
	if len(data) > 0 {
		var parser koanf.Parser = json.Parser()
		if s.format == FormatYAML {
			parser = yaml.Parser()
		}
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	if err := s.applyEnv(k); err != nil {
		return nil, err
	}
	return k, nil
}

// applyEnv 用 PREFIX_A__B=v 覆盖 a.b。
func (s *Source) applyEnv(k *koanf.Koanf) error {
	if s.envPrefix == "" {
		return nil
	}
	for _, kv := range s.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, s.envPrefix) {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(name, s.envPrefix))
		key = strings.ReplaceAll(key, "__", delim)
		if key == "" {
			continue
		}
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("%w: env %s: %w", ErrParseFailed, name, err)
		}
	}
	return nil
}

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}
