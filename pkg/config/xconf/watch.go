package xconf

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 合并连续文件事件的等待时间
const DefaultDebounce = 100 * time.Millisecond

// WatchOption 配置 Watch
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce 设置防抖时间
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watch 监视配置文件，文件变更时 Reload 并以结果调用 onChange（成功时 err 为 nil）。
//
// 阻塞直到 ctx 取消，返回 nil；watcher 创建失败时立即返回错误。
// 监视的是文件所在目录，以覆盖编辑器先写临时文件再 rename 的保存方式。
func (s *Source) Watch(ctx context.Context, onChange func(err error), opts ...WatchOption) error {
	if s.path == "" {
		return ErrNotReloadable
	}
	o := &watchOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	notify := func(err error) {
		if onChange != nil {
			onChange(err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xconf: create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	dir, name := filepath.Split(filepath.Clean(s.path))
	if dir == "" {
		dir = "."
	}
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("xconf: watch %s: %w", dir, err)
	}

	timer := time.NewTimer(o.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) == name && ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				timer.Reset(o.debounce)
			}
		case werr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			notify(fmt.Errorf("xconf: watch: %w", werr))
		case <-timer.C:
			notify(s.Reload())
		}
	}
}
