package xtrace

import "strings"

// =============================================================================
// W3C Traceparent 解析与生成
// 参考: https://www.w3.org/TR/trace-context/
// =============================================================================

// traceparentLen W3C traceparent 固定长度：00-{32}-{16}-{2} = 55 字符
const traceparentLen = 55

// Traceparent 是解析后的 W3C traceparent。
//
// SpanID 是调用方的 span（即本服务入站 span 的父级）。
type Traceparent struct {
	Version    string
	TraceID    string
	SpanID     string
	TraceFlags string
}

// Sampled 判断 trace-flags 的采样位是否置位。
func (t Traceparent) Sampled() bool {
	return isValidTraceFlags(t.TraceFlags) && hexNibble(t.TraceFlags[1])&0x01 == 1
}

// ParseTraceparent 解析 W3C traceparent 格式
//
// 格式：{version}-{trace-id}-{parent-id}-{trace-flags}
// 示例：00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01
//
// 版本 "ff" 始终无效；版本 00 必须恰好 55 字符；
// 更高版本按 00 的格式解析前 4 个字段，扩展字段必须以 '-' 分隔。
// 解析结果统一为小写。
func ParseTraceparent(s string) (Traceparent, bool) {
	s = strings.TrimSpace(s)
	if !validateTraceparentStructure(s) {
		return Traceparent{}, false
	}
	tp := Traceparent{
		Version:    strings.ToLower(s[0:2]),
		TraceID:    strings.ToLower(s[3:35]),
		SpanID:     strings.ToLower(s[36:52]),
		TraceFlags: strings.ToLower(s[53:55]),
	}
	if !isValidTraceID(tp.TraceID) || !isValidSpanID(tp.SpanID) || !isValidTraceFlags(tp.TraceFlags) {
		return Traceparent{}, false
	}
	return tp, true
}

// FormatTraceparent 生成 v00 traceparent，traceID 或 spanID 无效时返回空字符串。
//
// traceFlags 为空或无效时使用 "00"。输出始终为小写。
func FormatTraceparent(traceID, spanID, traceFlags string) string {
	if !isValidTraceID(traceID) || !isValidSpanID(spanID) {
		return ""
	}
	if !isValidTraceFlags(traceFlags) {
		traceFlags = "00"
	}

	var buf [traceparentLen]byte
	copy(buf[0:3], "00-")
	copy(buf[3:35], strings.ToLower(traceID))
	buf[35] = '-'
	copy(buf[36:52], strings.ToLower(spanID))
	buf[52] = '-'
	copy(buf[53:55], strings.ToLower(traceFlags))
	return string(buf[:])
}

// 调用方保证 len(s) >= 55。
func hasTraceparentSeparators(s string) bool {
	return s[2] == '-' && s[35] == '-' && s[52] == '-'
}

func validateTraceparentStructure(s string) bool {
	if len(s) < traceparentLen || !hasTraceparentSeparators(s) {
		return false
	}
	version := s[0:2]
	if !isValidHex(version) || strings.EqualFold(version, "ff") {
		return false
	}
	if version == "00" {
		return len(s) == traceparentLen
	}
	return len(s) == traceparentLen || s[traceparentLen] == '-'
}

func isValidTraceFlags(flags string) bool {
	return len(flags) == 2 && isValidHex(flags)
}

// isValidHex 同时接受大写和小写。
func isValidHex(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if hexNibble(s[i]) > 0x0f {
			return false
		}
	}
	return true
}

// hexNibble 返回十六进制字符的值，非法字符返回 0xff。
func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0xff
	}
}

// IsValidTraceID 验证 trace ID 格式（32位十六进制，非全零）
func IsValidTraceID(id string) bool { return isValidTraceID(id) }

// IsValidSpanID 验证 span ID 格式（16位十六进制，非全零）
func IsValidSpanID(id string) bool { return isValidSpanID(id) }

func isValidTraceID(id string) bool {
	if len(id) != 32 || !isValidHex(id) {
		return false
	}
	return id != "00000000000000000000000000000000"
}

func isValidSpanID(id string) bool {
	if len(id) != 16 || !isValidHex(id) {
		return false
	}
	return id != "0000000000000000"
}
