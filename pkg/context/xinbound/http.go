package xinbound

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xmetrics"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xtrace"
)

const msgAccess = "request completed"

// errServerStatus 标记 5xx 响应，使 server span 以 Error 状态结束。
type errServerStatus int

func (e errServerStatus) Error() string { return fmt.Sprintf("http status %d", int(e)) }

// Middleware 返回初始化关联上下文的 HTTP 中间件。
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	o := newOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := o.newCorrelation(r.Header.Get, xctx.ComponentHTTP)

			_ = xctx.Run(r.Context(), c, func(ctx context.Context) error {
				if o.ignored(r.URL.Path) {
					writeHeaders(w.Header(), ctx)
					next.ServeHTTP(w, r.WithContext(ctx))
					return nil
				}
				if o.tracer == nil {
					_ = o.serveHTTP(ctx, w, r, next)
					return nil
				}
				err := o.tracer.Start(ctx, r.Method+" "+r.URL.Path, func(ctx context.Context) error {
					return o.serveHTTP(ctx, w, r, next)
				}, xtrace.WithKind(xtrace.KindServer))
				var status errServerStatus
				if errors.As(err, &status) {
					return nil
				}
				return err
			})
		})
	}
}

// serveHTTP 写出关联响应头后调用 handler，结束时补全 span 属性、指标与访问日志。
// 5xx 响应返回 errServerStatus。
func (o *options) serveHTTP(ctx context.Context, w http.ResponseWriter, r *http.Request, next http.Handler) error {
	start := time.Now()
	m := xmetrics.Start(ctx, o.observer, xmetrics.Options{})
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	writeHeaders(w.Header(), ctx)

	next.ServeHTTP(rec, r.WithContext(ctx))

	route := routePattern(r)
	operation := r.Method + " " + route
	if span := xtrace.ActiveSpan(ctx); span != nil {
		span.SetName(operation)
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", rec.status),
		)
	}

	var err error
	if rec.status >= http.StatusInternalServerError {
		err = errServerStatus(rec.status)
	}
	m.End(xmetrics.Result{
		Operation: operation,
		Err:       err,
		Attrs:     []xmetrics.Attr{attribute.Int("statusCode", rec.status)},
	})
	if o.accessLog {
		o.log().Info(ctx, msgAccess,
			xlog.HTTPMethod(r.Method),
			xlog.Path(r.URL.Path),
			xlog.StatusCode(rec.status),
			xlog.Duration(time.Since(start)),
		)
	}
	return err
}

// routePattern 返回 chi 匹配到的路由模板，未经 chi 路由时退回原始路径。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func writeHeaders(h http.Header, ctx context.Context) {
	requestID, traceID, spanID := responseIDs(ctx)
	h.Set(xtrace.HeaderRequestID, requestID)
	if traceID != "" {
		h.Set(xtrace.HeaderTraceID, traceID)
	}
	if spanID != "" {
		h.Set(xtrace.HeaderSpanID, spanID)
	}
}

// statusRecorder 记录写出的状态码，并透传 Flush/Hijack 以支持流式响应与 WebSocket 升级。
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("xinbound: response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	s.wroteHeader = true
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
