package xlog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level 日志级别，数值与 slog.Level 一致
type Level slog.Level

// TRACE 与 FATAL 分别位于 DEBUG 之下、ERROR 之上一档
const (
	LevelTrace = Level(slog.LevelDebug - 4)
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
	LevelFatal = Level(slog.LevelError + 4)
)

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// 配置中可写的级别名，warning 是 warn 的别名
var levelsByName = map[string]Level{
	"trace":   LevelTrace,
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
	"fatal":   LevelFatal,
}

// String 具名级别返回大写名称，中间值沿用 slog 的写法，如 "INFO+2"。
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return slog.Level(l).String()
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText 使 Level 可直接作为 koanf/json 配置字段。
func (l *Level) UnmarshalText(data []byte) error {
	lv, err := ParseLevel(string(data))
	if err == nil {
		*l = lv
	}
	return err
}

// ParseLevel 按名称解析级别，忽略大小写与首尾空白；无法识别时返回 LevelInfo 和错误。
func ParseLevel(s string) (Level, error) {
	if lv, ok := levelsByName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lv, nil
	}
	return LevelInfo, fmt.Errorf("xlog: unknown level %q", s)
}

// replaceLevelName 把顶层 level 字段写成 TRACE/FATAL，而不是 "DEBUG-4"/"ERROR+4"。
func replaceLevelName(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if lv, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(Level(lv).String())
		}
	}
	return a
}
