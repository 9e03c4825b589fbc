package xlog

import (
	"log/slog"
	"net/http"
	"strings"
)

// DefaultRedactMarker 脱敏后的替换值
const DefaultRedactMarker = "[REDACTED]"

// DefaultRedactKeys 默认敏感词。key 包含其中任一词（大小写不敏感）即脱敏。
var DefaultRedactKeys = []string{
	"password", "token", "authorization", "secret", "apikey", "cookie", "session",
}

// Redactor 按 key 名递归脱敏属性。
type Redactor struct {
	words  []string
	marker string
}

// NewRedactor 创建 Redactor。words 为空时使用 DefaultRedactKeys，marker 为空时使用 DefaultRedactMarker。
func NewRedactor(words []string, marker string) *Redactor {
	if len(words) == 0 {
		words = DefaultRedactKeys
	}
	if marker == "" {
		marker = DefaultRedactMarker
	}
	normalized := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			normalized = append(normalized, w)
		}
	}
	return &Redactor{words: normalized, marker: marker}
}

// Sensitive 判断 key 是否包含敏感词。
func (r *Redactor) Sensitive(key string) bool {
	if r == nil || key == "" {
		return false
	}
	lower := strings.ToLower(key)
	for _, w := range r.words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// Redact 返回脱敏后的属性副本，分组内的属性递归处理。
func (r *Redactor) Redact(attrs []slog.Attr) []slog.Attr {
	if r == nil || len(attrs) == 0 {
		return attrs
	}
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, r.redactAttr(a))
	}
	return out
}

func (r *Redactor) redactAttr(a slog.Attr) slog.Attr {
	if r.Sensitive(a.Key) {
		return slog.String(a.Key, r.marker)
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(r.Redact(v.Group())...)}
	}
	if v.Kind() == slog.KindAny {
		if m, ok := r.redactValue(v.Any()); ok {
			return slog.Any(a.Key, m)
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

// redactValue 处理以字符串为 key 的常见 map（含 http.Header），ok 为 false 表示 v 原样保留。
func (r *Redactor) redactValue(v any) (any, bool) {
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			if r.Sensitive(k) {
				out[k] = r.marker
			} else if nested, ok := r.redactValue(val); ok {
				out[k] = nested
			} else {
				out[k] = val
			}
		}
		return out, true
	case map[string]string:
		return redactFlat(r, m, r.marker), true
	case map[string][]string:
		return redactFlat(r, m, []string{r.marker}), true
	case http.Header:
		return http.Header(redactFlat(r, m, []string{r.marker})), true
	}
	return nil, false
}

func redactFlat[M ~map[string]V, V any](r *Redactor, m M, marker V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		if r.Sensitive(k) {
			v = marker
		}
		out[k] = v
	}
	return out
}
