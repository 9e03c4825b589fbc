package xreport

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sokolovgit/code-hive-sub000/pkg/errors/xerr"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
)

// kindCodes 领域错误类别到 gRPC 状态码的映射
var kindCodes = map[xerr.Kind]codes.Code{
	xerr.KindInternal:        codes.Internal,
	xerr.KindClientInput:     codes.InvalidArgument,
	xerr.KindBusinessRule:    codes.FailedPrecondition,
	xerr.KindNotFound:        codes.NotFound,
	xerr.KindConflict:        codes.AlreadyExists,
	xerr.KindUnauthenticated: codes.Unauthenticated,
	xerr.KindForbidden:       codes.PermissionDenied,
	xerr.KindUpstream:        codes.Unavailable,
}

// CodeOf 返回领域错误类别对应的 gRPC 状态码。
func CodeOf(kind xerr.Kind) codes.Code {
	if c, ok := kindCodes[kind]; ok {
		return c
	}
	return codes.Internal
}

// RPC 记录错误并返回可通过 gRPC 错误通道传出的 status 错误。
//
// 领域错误的 RPCPayload 以 structpb.Struct 放入 status 详情；
// handler 自行构造的 gRPC status 错误（非 Unknown）原样返回。err 为 nil 时返回 nil。
func (r *Reporter) RPC(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var domain *xerr.Error
	isDomain := errors.As(err, &domain)

	de := xerr.From(err)
	de.SetTransportIfUnset(xerr.TransportRPC)
	if de.Loggable {
		r.log().Error(ctx, msgRPC, xlog.Err(de))
	}

	if !isDomain {
		if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
			return err
		}
	}
	return rpcStatus(de, r.genericMessage()).Err()
}

func rpcStatus(de *xerr.Error, generic string) *status.Status {
	payload := de.RPCPayloadWith(generic)
	st := status.New(CodeOf(de.Kind), payload.Message)
	detail, err := payloadStruct(payload)
	if err != nil {
		return st
	}
	if withDetail, err := st.WithDetails(detail); err == nil {
		return withDetail
	}
	return st
}

// payloadStruct 经 JSON 归一化后转为 structpb.Struct，
// 使任意 metadata 值（结构体、时间等）都能放入详情。
func payloadStruct(p xerr.RPCPayload) (*structpb.Struct, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// RPCPayloadOf 从 RPC 返回的 status 错误中取出错误载荷。
func RPCPayloadOf(err error) (xerr.RPCPayload, bool) {
	st, ok := status.FromError(err)
	if !ok || st == nil {
		return xerr.RPCPayload{}, false
	}
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		raw, err := json.Marshal(s.AsMap())
		if err != nil {
			return xerr.RPCPayload{}, false
		}
		var p xerr.RPCPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return xerr.RPCPayload{}, false
		}
		return p, true
	}
	return xerr.RPCPayload{}, false
}

// UnaryServerInterceptor 将 handler 的错误与 panic 汇入 RPC。
func (r *Reporter) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if v := recover(); v != nil {
				resp, err = nil, r.RPC(ctx, fromPanic(v))
			}
		}()
		resp, err = handler(ctx, req)
		if err != nil {
			return nil, r.RPC(ctx, err)
		}
		return resp, nil
	}
}

// StreamServerInterceptor 将流 handler 的错误与 panic 汇入 RPC。
func (r *Reporter) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		ctx := ss.Context()
		defer func() {
			if v := recover(); v != nil {
				err = r.RPC(ctx, fromPanic(v))
			}
		}()
		return r.RPC(ctx, handler(srv, ss))
	}
}
