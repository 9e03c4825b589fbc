package xctx

import "errors"

type contextKey string

// keyStore 是 *Store 在 context 中唯一的挂载点。
const keyStore = contextKey("xctx:store")

var (
	// ErrNilContext 传入的 ctx 为 nil
	ErrNilContext = errors.New("xctx: nil context")
	// ErrNilFunc Run 的 fn 为 nil
	ErrNilFunc = errors.New("xctx: nil func")
)

// Require* 系列在字段为空时返回的错误
var (
	ErrMissingRequestID = errors.New("xctx: missing requestId")
	ErrMissingTraceID   = errors.New("xctx: missing traceId")
	ErrMissingSpanID    = errors.New("xctx: missing spanId")
	ErrMissingUserID    = errors.New("xctx: missing userId")
)
