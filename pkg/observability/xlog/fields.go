package xlog

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// fieldSet 按 key 去重的有序属性集合，后写入者覆盖先写入者。
type fieldSet struct {
	attrs []slog.Attr
	index map[string]int
}

func newFieldSet(capacity int) *fieldSet {
	return &fieldSet{
		attrs: make([]slog.Attr, 0, capacity),
		index: make(map[string]int, capacity),
	}
}

func (f *fieldSet) add(attrs ...slog.Attr) {
	for _, a := range attrs {
		if a.Key == "" {
			// 空 key 的分组按 slog 约定内联
			if a.Value.Kind() == slog.KindGroup {
				f.add(a.Value.Group()...)
			}
			continue
		}
		if i, ok := f.index[a.Key]; ok {
			f.attrs[i] = a
			continue
		}
		f.index[a.Key] = len(f.attrs)
		f.attrs = append(f.attrs, a)
	}
}

func (f *fieldSet) has(key string) bool {
	_, ok := f.index[key]
	return ok
}

func (f *fieldSet) remove(keys ...string) {
	removed := false
	for _, k := range keys {
		if i, ok := f.index[k]; ok {
			f.attrs[i] = slog.Attr{}
			delete(f.index, k)
			removed = true
		}
	}
	if !removed {
		return
	}
	kept := f.attrs[:0]
	for _, a := range f.attrs {
		if a.Key != "" {
			kept = append(kept, a)
		}
	}
	f.attrs = kept
	for i, a := range f.attrs {
		f.index[a.Key] = i
	}
}

func (f *fieldSet) list() []slog.Attr {
	return f.attrs
}

// =============================================================================
// 错误展开
// =============================================================================

// 错误分组中的字段 Key
const (
	KeyErrorName    = "name"
	KeyErrorMessage = "message"
	KeyErrorCause   = "cause"
)

// ErrorNamer 可由错误类型实现，提供稳定的错误名称（如错误码）。
type ErrorNamer interface {
	ErrorName() string
}

// StackLiner 可由错误类型实现，提供构造时捕获的调用栈（逐行）。
type StackLiner interface {
	StackLines() []string
}

// errorValue 取出属性中的 error 值。
func errorValue(a slog.Attr) (error, bool) {
	if a.Value.Kind() != slog.KindAny {
		return nil, false
	}
	err, ok := a.Value.Any().(error)
	return err, ok && err != nil
}

// expandError 将 error 展开为 {name, message, stack[], cause} 分组。
func expandError(key string, err error) slog.Attr {
	attrs := []slog.Attr{
		slog.String(KeyErrorName, errorName(err)),
		slog.String(KeyErrorMessage, err.Error()),
	}
	var sl StackLiner
	if errors.As(err, &sl) {
		if lines := sl.StackLines(); len(lines) > 0 {
			attrs = append(attrs, slog.Any(KeyStack, lines))
		}
	}
	if cause := errors.Unwrap(err); cause != nil {
		attrs = append(attrs, slog.String(KeyErrorCause, cause.Error()))
	}
	return slog.Attr{Key: key, Value: slog.GroupValue(attrs...)}
}

func errorName(err error) string {
	var n ErrorNamer
	if errors.As(err, &n) {
		if name := n.ErrorName(); name != "" {
			return name
		}
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

// flattenErrors 处理集合中的 error 值：error 及以上级别展开为分组并移到末尾，
// 其他级别转为消息字符串。
func flattenErrors(f *fieldSet, expand bool) {
	var expanded []slog.Attr
	for i, a := range f.attrs {
		err, ok := errorValue(a)
		if !ok {
			continue
		}
		if expand {
			expanded = append(expanded, expandError(a.Key, err))
			continue
		}
		f.attrs[i] = slog.String(a.Key, err.Error())
	}
	if len(expanded) == 0 {
		return
	}
	keys := make([]string, len(expanded))
	for i, a := range expanded {
		keys[i] = a.Key
	}
	f.remove(keys...)
	f.add(expanded...)
}
