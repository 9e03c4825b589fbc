package xerr

import (
	"errors"
	"fmt"
	"maps"
	"runtime"
	"strconv"
	"sync"
)

// GenericMessage 消息不可对外暴露时使用的固定文案
const GenericMessage = "Internal server error"

// CodeUnknown 由非领域错误转换而来的错误码
const CodeUnknown = "UNKNOWN_ERROR"

// Transport 错误最终被处理的传输通道
type Transport string

// 传输通道
const (
	TransportHTTP    Transport = "http"
	TransportRPC     Transport = "rpc"
	TransportWS      Transport = "ws"
	TransportUnknown Transport = "unknown"
)

// maxStackDepth 构造时捕获的最大栈帧数
const maxStackDepth = 32

// Error 领域错误记录
//
// 字段在构造后只读，Transport 除外（只能设置一次，见 SetTransportIfUnset）。
type Error struct {
	// Code 稳定的机器可读错误码，如 USER_NOT_FOUND
	Code string
	// Kind 错误类别，决定默认状态码与日志/暴露策略
	Kind Kind
	// StatusCode 显式 HTTP 状态码，0 表示使用 Kind 的默认值
	StatusCode int
	// Message 人类可读消息
	Message string
	// Metadata 可对外返回的附加信息
	Metadata map[string]any
	// Loggable 是否写入日志
	Loggable bool
	// Expose 是否向调用方展示 Message
	Expose bool
	// Cause 被包装的原始错误（单层）
	Cause error

	mu        sync.Mutex
	transport Transport
	stack     []string
}

// Option 配置 Error
type Option func(*Error)

// WithStatus 设置显式状态码
func WithStatus(code int) Option {
	return func(e *Error) { e.StatusCode = code }
}

// WithMetadata 合并附加信息
func WithMetadata(md map[string]any) Option {
	return func(e *Error) {
		if len(md) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(md))
		}
		maps.Copy(e.Metadata, md)
	}
}

// WithMeta 设置单个附加信息
func WithMeta(key string, value any) Option {
	return WithMetadata(map[string]any{key: value})
}

// WithCause 设置原始错误
func WithCause(err error) Option {
	return func(e *Error) { e.Cause = err }
}

// WithLoggable 覆盖类别默认的日志策略
func WithLoggable(loggable bool) Option {
	return func(e *Error) { e.Loggable = loggable }
}

// WithExpose 覆盖类别默认的暴露策略
func WithExpose(expose bool) Option {
	return func(e *Error) { e.Expose = expose }
}

// New 创建领域错误，Loggable/Expose 取类别默认值，可通过 Option 覆盖。
func New(kind Kind, code, message string, opts ...Option) *Error {
	d := kind.defaults()
	e := &Error{
		Code:     code,
		Kind:     kind,
		Message:  message,
		Loggable: d.loggable,
		Expose:   d.expose,
		stack:    captureStack(3),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap 以 err 为 Cause 创建领域错误，err 为 nil 时返回 nil。
func Wrap(err error, kind Kind, code, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	return New(kind, code, message, append([]Option{WithCause(err)}, opts...)...)
}

// ClientInput 创建客户端输入错误
func ClientInput(code, message string, opts ...Option) *Error {
	return New(KindClientInput, code, message, opts...)
}

// BusinessRule 创建业务规则错误
func BusinessRule(code, message string, opts ...Option) *Error {
	return New(KindBusinessRule, code, message, opts...)
}

// NotFound 创建资源不存在错误
func NotFound(code, message string, opts ...Option) *Error {
	return New(KindNotFound, code, message, opts...)
}

// Conflict 创建资源冲突错误
func Conflict(code, message string, opts ...Option) *Error {
	return New(KindConflict, code, message, opts...)
}

// Unauthenticated 创建未认证错误
func Unauthenticated(code, message string, opts ...Option) *Error {
	return New(KindUnauthenticated, code, message, opts...)
}

// Forbidden 创建无权限错误
func Forbidden(code, message string, opts ...Option) *Error {
	return New(KindForbidden, code, message, opts...)
}

// Upstream 创建外部依赖错误
func Upstream(code, message string, opts ...Option) *Error {
	return New(KindUpstream, code, message, opts...)
}

// Internal 创建内部错误
func Internal(code, message string, opts ...Option) *Error {
	return New(KindInternal, code, message, opts...)
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Unwrap 返回 Cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 错误码相同即视为相同错误，用于与哨兵领域错误比较。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// ErrorName 返回错误码，用于日志中的错误名称
func (e *Error) ErrorName() string {
	return e.Code
}

// StackLines 返回构造时捕获的调用栈，每帧一行
func (e *Error) StackLines() []string {
	return e.stack
}

// Status 返回生效的 HTTP 状态码：显式值优先，否则为类别默认值。
func (e *Error) Status() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	return e.Kind.DefaultStatus()
}

// PublicMessage 返回可对外展示的消息，不可暴露时返回 generic。
func (e *Error) PublicMessage(generic string) string {
	if e.Expose && e.Message != "" {
		return e.Message
	}
	if generic == "" {
		generic = GenericMessage
	}
	return generic
}

// Transport 返回已标记的传输通道，未标记时为空。
func (e *Error) Transport() Transport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transport
}

// SetTransportIfUnset 首次调用时标记传输通道并返回 true，之后的调用不生效。
func (e *Error) SetTransportIfUnset(t Transport) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transport != "" || t == "" {
		return false
	}
	e.transport = t
	return true
}

// =============================================================================
// 对外载荷
// =============================================================================

// HTTPBody HTTP 响应体。statusCode 仅在错误显式指定状态码时出现。
type HTTPBody struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"statusCode,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RPCPayload RPC 错误载荷，不含 statusCode 字段。
type RPCPayload struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// HTTPBody 使用 GenericMessage 构造 HTTP 响应体
func (e *Error) HTTPBody() HTTPBody {
	return e.HTTPBodyWith(GenericMessage)
}

// HTTPBodyWith 构造 HTTP 响应体，消息不可暴露时使用 generic。
func (e *Error) HTTPBodyWith(generic string) HTTPBody {
	return HTTPBody{
		Code:       e.Code,
		Message:    e.PublicMessage(generic),
		StatusCode: e.StatusCode,
		Metadata:   maps.Clone(e.Metadata),
	}
}

// RPCPayload 使用 GenericMessage 构造 RPC 载荷
func (e *Error) RPCPayload() RPCPayload {
	return e.RPCPayloadWith(GenericMessage)
}

// RPCPayloadWith 构造 RPC 载荷，消息不可暴露时使用 generic。
func (e *Error) RPCPayloadWith(generic string) RPCPayload {
	return RPCPayload{
		Code:     e.Code,
		Message:  e.PublicMessage(generic),
		Metadata: maps.Clone(e.Metadata),
	}
}

// =============================================================================
// 转换
// =============================================================================

// HTTPStatusCarrier 携带 HTTP 状态码的非领域错误（如框架抛出的标准异常）。
type HTTPStatusCarrier interface {
	HTTPStatus() int
}

// From 将任意值规范化为领域错误：
//
//   - nil → nil
//   - 错误链中的 *Error → 原值
//   - 实现 HTTPStatusCarrier 的错误 → 保留其状态码，4xx 时消息可暴露
//   - 其他 error / string / 任意 panic 值 → CodeUnknown 的内部错误
func From(v any) *Error {
	switch x := v.(type) {
	case nil:
		return nil
	case *Error:
		if x == nil {
			return nil
		}
		return x
	case error:
		var de *Error
		if errors.As(x, &de) && de != nil {
			return de
		}
		e := New(KindInternal, CodeUnknown, x.Error(), WithCause(x))
		var carrier HTTPStatusCarrier
		if errors.As(x, &carrier) {
			if status := carrier.HTTPStatus(); status > 0 {
				e.StatusCode = status
				e.Expose = status < 500
			}
		}
		return e
	case string:
		return New(KindInternal, CodeUnknown, x)
	default:
		return New(KindInternal, CodeUnknown, fmt.Sprint(x))
	}
}

// StatusOf 返回 err 对应的 HTTP 状态码：领域错误 → HTTPStatusCarrier → 500。
func StatusOf(err error) int {
	var de *Error
	if errors.As(err, &de) && de != nil {
		return de.Status()
	}
	var carrier HTTPStatusCarrier
	if errors.As(err, &carrier) {
		if status := carrier.HTTPStatus(); status > 0 {
			return status
		}
	}
	return 500
}

func captureStack(skip int) []string {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	lines := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			lines = append(lines, frame.Function+" ("+frame.File+":"+strconv.Itoa(frame.Line)+")")
		}
		if !more {
			break
		}
	}
	return lines
}
