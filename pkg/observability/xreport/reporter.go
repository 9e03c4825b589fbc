package xreport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
	"github.com/sokolovgit/code-hive-sub000/pkg/errors/xerr"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xtrace"
)

// 日志消息
const (
	msgHTTP    = "http request failed"
	msgRPC     = "rpc request failed"
	msgWS      = "ws event failed"
	msgUnknown = "unhandled error"
)

// Reporter 按传输通道记录错误并塑造响应。
//
// 零值与 nil 均可用：使用全局 logger 与 xerr.GenericMessage。
type Reporter struct {
	logger  xlog.Logger
	generic string
}

// Option 配置 Reporter
type Option func(*Reporter)

// WithLogger 设置日志记录器，nil 时使用 xlog.Default()。
func WithLogger(l xlog.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// WithGenericMessage 设置消息不可暴露时的替代文案。
func WithGenericMessage(msg string) Option {
	return func(r *Reporter) {
		if msg != "" {
			r.generic = msg
		}
	}
}

// New 创建 Reporter
func New(opts ...Option) *Reporter {
	r := &Reporter{generic: xerr.GenericMessage}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Reporter) log() xlog.Logger {
	if r == nil || r.logger == nil {
		return xlog.Default()
	}
	return r.logger
}

func (r *Reporter) genericMessage() string {
	if r == nil || r.generic == "" {
		return xerr.GenericMessage
	}
	return r.generic
}

// =============================================================================
// HTTP
// =============================================================================

// HTTP 记录错误并写出 JSON 错误响应。err 为 nil 时不做任何事。
func (r *Reporter) HTTP(w http.ResponseWriter, req *http.Request, err error) {
	de := xerr.From(err)
	if de == nil {
		return
	}
	de.SetTransportIfUnset(xerr.TransportHTTP)

	ctx := req.Context()
	status := de.Status()
	if de.Loggable {
		attrs := []slog.Attr{
			xlog.StatusCode(status),
			xlog.HTTPMethod(req.Method),
			xlog.Path(req.URL.Path),
			xlog.Err(de),
		}
		logger := r.log()
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error(ctx, msgHTTP, attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn(ctx, msgHTTP, attrs...)
		default:
			logger.Info(ctx, msgHTTP, attrs...)
		}
	}

	h := w.Header()
	h.Set(xtrace.HeaderRequestID, requestID(ctx, req))
	h.Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// 状态码已写出，编码失败只能放弃
	_ = json.NewEncoder(w).Encode(de.HTTPBodyWith(r.genericMessage()))
}

// requestID 依次取关联上下文、入站头，最后生成新值。
func requestID(ctx context.Context, req *http.Request) string {
	if id := xctx.RequestID(ctx); id != "" {
		return id
	}
	if id := req.Header.Get(xtrace.HeaderRequestID); id != "" {
		return id
	}
	return xctx.EnsureRequestID(ctx)
}

// =============================================================================
// WS / Unknown
// =============================================================================

// WS 记录 WebSocket 事件处理失败，不向客户端写回任何内容。
func (r *Reporter) WS(ctx context.Context, event, clientID string, err error) {
	de := xerr.From(err)
	if de == nil {
		return
	}
	de.SetTransportIfUnset(xerr.TransportWS)
	if !de.Loggable {
		return
	}
	r.log().Error(ctx, msgWS,
		xlog.Event(event),
		xlog.ClientID(clientID),
		xlog.Err(de),
	)
}

// Unknown 记录无法归属任何传输通道的错误。
func (r *Reporter) Unknown(ctx context.Context, err error) {
	de := xerr.From(err)
	if de == nil {
		return
	}
	de.SetTransportIfUnset(xerr.TransportUnknown)
	if !de.Loggable {
		return
	}
	r.log().Error(ctx, msgUnknown, xlog.Err(de))
}

// =============================================================================
// panic
// =============================================================================

// PanicError panic 值的错误包装，保留原始值。
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	switch v := e.Value.(type) {
	case error:
		return "panic: " + v.Error()
	case string:
		return "panic: " + v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "panic: unrepresentable value"
		}
		return "panic: " + string(b)
	}
}

// Unwrap 当 panic 值本身是 error 时返回它。
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// fromPanic 将 recover() 的结果转为错误。领域错误原样返回。
func fromPanic(v any) error {
	if err, ok := v.(error); ok {
		var de *xerr.Error
		if errors.As(err, &de) {
			return err
		}
	}
	return &PanicError{Value: v}
}

// RecoverHTTP 捕获 handler 中的 panic 并交给 HTTP 处理。
// http.ErrAbortHandler 继续向上传播，由 net/http 中止连接。
func (r *Reporter) RecoverHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(v)
			}
			r.HTTP(w, req, fromPanic(v))
		}()
		next.ServeHTTP(w, req)
	})
}
