package xlog

import "log/slog"

// lazy 实现 slog.LogValuer，只有记录真正写出时才调用 fn；级别被过滤时 fn 不执行。
type lazy[T any] struct {
	fn   func() T
	wrap func(T) slog.Value
}

func (l lazy[T]) LogValue() slog.Value { return l.wrap(l.fn()) }

// Lazy 延迟求值的属性，适合序列化请求体这类昂贵参数：
//
//	logger.Debug(ctx, "request", xlog.Lazy("body", func() any {
//	    return expensiveSerialize(req)
//	}))
func Lazy(key string, fn func() any) slog.Attr {
	if fn == nil {
		return slog.Any(key, nil)
	}
	return slog.Any(key, lazy[any]{fn: fn, wrap: slog.AnyValue})
}

func LazyString(key string, fn func() string) slog.Attr {
	if fn == nil {
		return slog.String(key, "")
	}
	return slog.Any(key, lazy[string]{fn: fn, wrap: slog.StringValue})
}

// LazyGroup fn 返回的属性作为 key 分组输出
func LazyGroup(key string, fn func() []slog.Attr) slog.Attr {
	if fn == nil {
		return slog.Group(key)
	}
	return slog.Any(key, lazy[[]slog.Attr]{fn: fn, wrap: func(as []slog.Attr) slog.Value {
		return slog.GroupValue(as...)
	}})
}
