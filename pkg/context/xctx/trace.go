package xctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// =============================================================================
// ID 格式常量（遵循 W3C Trace Context 规范）
// =============================================================================

const (
	// TraceIDSize W3C 规范: 128-bit (16 bytes) -> 32 hex chars
	TraceIDSize = 16

	// SpanIDSize W3C 规范: 64-bit (8 bytes) -> 16 hex chars
	SpanIDSize = 8
)

// =============================================================================
// 关联字段 Key 常量
// =============================================================================

// 关联字段 Key，同时用于 Set/Get 与日志属性名。
const (
	KeyRequestID     = "requestId"
	KeyCorrelationID = "correlationId"
	KeyTraceID       = "traceId"
	KeySpanID        = "spanId"
	KeyParentSpanID  = "parentSpanId"
	KeyTraceFlags    = "traceFlags"
	KeyUserID        = "userId"
	KeyUserRole      = "userRole"
	KeyComponent     = "component"
	KeyService       = "service"
	KeyMethod        = "method"

	// fieldCount 类型化字段数量（用于 slog 属性预分配）
	fieldCount = 11
)

// =============================================================================
// 字段读取
// =============================================================================

// TraceID 返回当前 traceId，不存在返回空字符串。
func TraceID(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string { return c.TraceID })
}

// SpanID 返回当前 spanId，不存在返回空字符串。
func SpanID(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string { return c.SpanID })
}

// ParentSpanID 返回当前 parentSpanId，不存在返回空字符串。
func ParentSpanID(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string { return c.ParentSpanID })
}

// TraceFlags 返回 W3C trace-flags（如 "01"），不存在返回空字符串。
func TraceFlags(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string { return c.TraceFlags })
}

// RequestID 返回当前 requestId，不存在返回空字符串。
func RequestID(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string { return c.RequestID })
}

// CorrelationID 返回 correlationId，未设置时回退到 requestId。
func CorrelationID(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string {
		if c.CorrelationID != "" {
			return c.CorrelationID
		}
		return c.RequestID
	})
}

// ComponentOf 返回当前传输类型，不存在返回空值。
func ComponentOf(ctx context.Context) Component {
	return Component(readString(ctx, func(c *Correlation) string { return string(c.Component) }))
}

// Service 返回逻辑服务名。
func Service(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string { return c.Service })
}

// Method 返回逻辑方法名。
func Method(ctx context.Context) string {
	return readString(ctx, func(c *Correlation) string { return c.Method })
}

// =============================================================================
// Require 函数：强制获取模式
// =============================================================================

// RequireTraceID 从 context 获取 traceId，不存在则返回错误。
//
// 如果 ctx 为 nil，返回 ErrNilContext。
func RequireTraceID(ctx context.Context) (string, error) {
	return require(ctx, TraceID, ErrMissingTraceID)
}

// RequireSpanID 从 context 获取 spanId，不存在则返回错误。
func RequireSpanID(ctx context.Context) (string, error) {
	return require(ctx, SpanID, ErrMissingSpanID)
}

// RequireRequestID 从 context 获取 requestId，不存在则返回错误。
func RequireRequestID(ctx context.Context) (string, error) {
	return require(ctx, RequestID, ErrMissingRequestID)
}

func require(ctx context.Context, get func(context.Context) string, missing error) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := get(ctx)
	if v == "" {
		return "", missing
	}
	return v, nil
}

// =============================================================================
// ID 生成函数
// 参考: https://www.w3.org/TR/trace-context/
// =============================================================================

func isAllZeros(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// GenerateTraceID 生成符合 W3C Trace Context 规范的 TraceID
//
// 格式: 32位小写十六进制字符串 (128-bit)，保证非全零。
// 熵源不可用时 panic（系统级故障，服务不应继续运行）。
func GenerateTraceID() string {
	var buf [TraceIDSize]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic("xctx: crypto/rand.Read failed: " + err.Error())
		}
		if !isAllZeros(buf[:]) {
			return hex.EncodeToString(buf[:])
		}
	}
}

// GenerateSpanID 生成符合 W3C Trace Context 规范的 SpanID
//
// 格式: 16位小写十六进制字符串 (64-bit)，保证非全零。
func GenerateSpanID() string {
	var buf [SpanIDSize]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic("xctx: crypto/rand.Read failed: " + err.Error())
		}
		if !isAllZeros(buf[:]) {
			return hex.EncodeToString(buf[:])
		}
	}
}

// GenerateRequestID 生成全局唯一的 RequestID（UUID v4）。
func GenerateRequestID() string {
	return uuid.NewString()
}

// EnsureRequestID 确保活跃 Store 中存在 requestId，返回最终值。
//
// 已存在则原样返回；否则生成新值写入。没有活跃 Store 时仅返回新生成的值。
func EnsureRequestID(ctx context.Context) string {
	var id string
	ok := Update(ctx, func(c *Correlation) {
		if c.RequestID == "" {
			c.RequestID = GenerateRequestID()
		}
		id = c.RequestID
	})
	if !ok {
		return GenerateRequestID()
	}
	return id
}

// =============================================================================
// Trace 结构体（批量模式）
// =============================================================================

// Trace 追踪信息结构体
type Trace struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	RequestID    string
	TraceFlags   string
}

// GetTrace 从 context 批量获取追踪信息，字段可能为空字符串。
func GetTrace(ctx context.Context) Trace {
	c := GetAll(ctx)
	return Trace{
		TraceID:      c.TraceID,
		SpanID:       c.SpanID,
		ParentSpanID: c.ParentSpanID,
		RequestID:    c.RequestID,
		TraceFlags:   c.TraceFlags,
	}
}

// Validate 校验 Trace 必填字段，按 TraceID → SpanID → RequestID 顺序返回第一个缺失错误。
func (t Trace) Validate() error {
	if t.TraceID == "" {
		return ErrMissingTraceID
	}
	if t.SpanID == "" {
		return ErrMissingSpanID
	}
	if t.RequestID == "" {
		return ErrMissingRequestID
	}
	return nil
}

// IsComplete TraceID、SpanID、RequestID 均非空时返回 true。
func (t Trace) IsComplete() bool {
	return t.Validate() == nil
}

// SetTrace 将 tr 中的非空字段写入活跃 Store。
//
// 空字段被跳过，不会清空已有值。无活跃 Store 时返回 false。
func SetTrace(ctx context.Context, tr Trace) bool {
	return Update(ctx, func(c *Correlation) {
		setIfNotEmpty(&c.TraceID, tr.TraceID)
		setIfNotEmpty(&c.SpanID, tr.SpanID)
		setIfNotEmpty(&c.ParentSpanID, tr.ParentSpanID)
		setIfNotEmpty(&c.RequestID, tr.RequestID)
		setIfNotEmpty(&c.TraceFlags, tr.TraceFlags)
	})
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
