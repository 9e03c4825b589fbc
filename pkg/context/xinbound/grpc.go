package xinbound

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/sokolovgit/code-hive-sub000/pkg/context/xctx"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xmetrics"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xtrace"
)

// UnaryServerInterceptor 返回初始化关联上下文的 gRPC 一元拦截器。
func UnaryServerInterceptor(opts ...Option) grpc.UnaryServerInterceptor {
	o := newOptions(opts)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		c := o.rpcCorrelation(ctx, info.FullMethod)
		err = xctx.Run(ctx, c, func(ctx context.Context) error {
			return o.serveRPC(ctx, info.FullMethod, func(ctx context.Context) error {
				_ = grpc.SetHeader(ctx, headerMD(ctx))
				var herr error
				resp, herr = handler(ctx, req)
				return herr
			})
		})
		return resp, err
	}
}

// StreamServerInterceptor 返回初始化关联上下文的 gRPC 流拦截器。
func StreamServerInterceptor(opts ...Option) grpc.StreamServerInterceptor {
	o := newOptions(opts)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		c := o.rpcCorrelation(ss.Context(), info.FullMethod)
		return xctx.Run(ss.Context(), c, func(ctx context.Context) error {
			return o.serveRPC(ctx, info.FullMethod, func(ctx context.Context) error {
				_ = ss.SetHeader(headerMD(ctx))
				return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
			})
		})
	}
}

func (o *options) rpcCorrelation(ctx context.Context, fullMethod string) xctx.Correlation {
	md, _ := metadata.FromIncomingContext(ctx)
	c := o.newCorrelation(mdGetter(md), xctx.ComponentRPC)
	c.Service, c.Method = splitFullMethod(fullMethod)
	return c
}

// serveRPC 在 server span（已配置 Tracer 时）中执行 work 并记录指标。
func (o *options) serveRPC(ctx context.Context, fullMethod string, work func(ctx context.Context) error) error {
	run := func(ctx context.Context) error {
		m := xmetrics.Start(ctx, o.observer, xmetrics.Options{Operation: fullMethod})
		err := work(ctx)
		code := status.Code(err)
		if span := xtrace.ActiveSpan(ctx); span != nil {
			span.SetAttributes(
				attribute.String("rpc.system", "grpc"),
				attribute.String("rpc.method", fullMethod),
				attribute.Int("rpc.grpc.status_code", int(code)),
			)
		}
		res := xmetrics.Result{
			Err:   err,
			Attrs: []xmetrics.Attr{attribute.String("grpcCode", code.String())},
		}
		if err != nil && !isServerError(code) {
			res.Status = xmetrics.StatusOK
		}
		m.End(res)
		return err
	}
	if o.tracer == nil {
		return run(ctx)
	}
	return o.tracer.Start(ctx, strings.TrimPrefix(fullMethod, "/"), run, xtrace.WithKind(xtrace.KindServer))
}

// splitFullMethod 将 "/pkg.Service/Method" 拆为 ("pkg.Service", "Method")。
func splitFullMethod(fullMethod string) (service, method string) {
	s := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

func mdGetter(md metadata.MD) xtrace.Getter {
	return func(key string) string {
		if vals := md.Get(key); len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
}

func headerMD(ctx context.Context) metadata.MD {
	requestID, traceID, spanID := responseIDs(ctx)
	md := metadata.Pairs(xtrace.HeaderRequestID, requestID)
	if traceID != "" {
		md.Set(xtrace.HeaderTraceID, traceID)
	}
	if spanID != "" {
		md.Set(xtrace.HeaderSpanID, spanID)
	}
	return md
}

// wrappedServerStream 用关联 context 替换流的 Context()。
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// isServerError 判断 gRPC 状态码是否属于服务端故障
func isServerError(code codes.Code) bool {
	switch code {
	case codes.Unknown, codes.Internal, codes.Unavailable, codes.DataLoss, codes.Unimplemented, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
